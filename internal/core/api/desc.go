package api

import (
	"context"

	"google.golang.org/grpc"
)

/*
 * Hand-written service descriptors.
 *
 * Each method decodes its request with the registered JSON codec and runs
 * through the server's interceptor chain exactly like a generated stub would.
 */

const (
	ExpressionServiceName = "cardwright.expression.v1.ExpressionAPI"
	ValidatorServiceName  = "cardwright.validator.v1.Validator"
)

// ExpressionAPIServer is the server API for the expression service.
type ExpressionAPIServer interface {
	Render(context.Context, *RenderRequest) (*RenderResponse, error)
	Parse(context.Context, *ParseRequest) (*ParseResponse, error)
	Palette(context.Context, *PaletteRequest) (*PaletteResponse, error)
	Expand(context.Context, *ExpandRequest) (*ExpandResponse, error)
	Validate(context.Context, *ValidateRequest) (*ValidateResponse, error)
	SaveRule(context.Context, *SaveRuleRequest) (*SaveRuleResponse, error)
	SaveCard(context.Context, *SaveCardRequest) (*SaveCardResponse, error)
	SaveProductCard(context.Context, *SaveProductCardRequest) (*SaveProductCardResponse, error)
}

// ValidatorServer is the server API for the validator service.
type ValidatorServer interface {
	Validate(context.Context, *ValidatorRequest) (*ValidatorResponse, error)
}

var expressionServiceDesc = grpc.ServiceDesc{
	ServiceName: ExpressionServiceName,
	HandlerType: (*ExpressionAPIServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(ExpressionServiceName, "Render", ExpressionAPIServer.Render),
		unaryMethod(ExpressionServiceName, "Parse", ExpressionAPIServer.Parse),
		unaryMethod(ExpressionServiceName, "Palette", ExpressionAPIServer.Palette),
		unaryMethod(ExpressionServiceName, "Expand", ExpressionAPIServer.Expand),
		unaryMethod(ExpressionServiceName, "Validate", ExpressionAPIServer.Validate),
		unaryMethod(ExpressionServiceName, "SaveRule", ExpressionAPIServer.SaveRule),
		unaryMethod(ExpressionServiceName, "SaveCard", ExpressionAPIServer.SaveCard),
		unaryMethod(ExpressionServiceName, "SaveProductCard", ExpressionAPIServer.SaveProductCard),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cardwright/expression/v1",
}

var validatorServiceDesc = grpc.ServiceDesc{
	ServiceName: ValidatorServiceName,
	HandlerType: (*ValidatorServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(ValidatorServiceName, "Validate", ValidatorServer.Validate),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cardwright/validator/v1",
}

// RegisterExpressionAPIServer registers srv on s.
func RegisterExpressionAPIServer(s grpc.ServiceRegistrar, srv ExpressionAPIServer) {
	s.RegisterService(&expressionServiceDesc, srv)
}

// RegisterValidatorServer registers srv on s.
func RegisterValidatorServer(s grpc.ServiceRegistrar, srv ValidatorServer) {
	s.RegisterService(&validatorServiceDesc, srv)
}

func unaryMethod[S any, Req any, Resp any](service, method string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// invoke performs a unary call with the JSON codec.
func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, service, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+service+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ExpressionClient calls the expression service.
type ExpressionClient struct {
	cc grpc.ClientConnInterface
}

// NewExpressionClient creates a client over cc.
func NewExpressionClient(cc grpc.ClientConnInterface) *ExpressionClient {
	return &ExpressionClient{cc: cc}
}

func (c *ExpressionClient) Render(ctx context.Context, in *RenderRequest, opts ...grpc.CallOption) (*RenderResponse, error) {
	return invoke[RenderResponse](ctx, c.cc, ExpressionServiceName, "Render", in, opts)
}

func (c *ExpressionClient) Parse(ctx context.Context, in *ParseRequest, opts ...grpc.CallOption) (*ParseResponse, error) {
	return invoke[ParseResponse](ctx, c.cc, ExpressionServiceName, "Parse", in, opts)
}

func (c *ExpressionClient) Palette(ctx context.Context, in *PaletteRequest, opts ...grpc.CallOption) (*PaletteResponse, error) {
	return invoke[PaletteResponse](ctx, c.cc, ExpressionServiceName, "Palette", in, opts)
}

func (c *ExpressionClient) Expand(ctx context.Context, in *ExpandRequest, opts ...grpc.CallOption) (*ExpandResponse, error) {
	return invoke[ExpandResponse](ctx, c.cc, ExpressionServiceName, "Expand", in, opts)
}

func (c *ExpressionClient) Validate(ctx context.Context, in *ValidateRequest, opts ...grpc.CallOption) (*ValidateResponse, error) {
	return invoke[ValidateResponse](ctx, c.cc, ExpressionServiceName, "Validate", in, opts)
}

func (c *ExpressionClient) SaveRule(ctx context.Context, in *SaveRuleRequest, opts ...grpc.CallOption) (*SaveRuleResponse, error) {
	return invoke[SaveRuleResponse](ctx, c.cc, ExpressionServiceName, "SaveRule", in, opts)
}

func (c *ExpressionClient) SaveCard(ctx context.Context, in *SaveCardRequest, opts ...grpc.CallOption) (*SaveCardResponse, error) {
	return invoke[SaveCardResponse](ctx, c.cc, ExpressionServiceName, "SaveCard", in, opts)
}

func (c *ExpressionClient) SaveProductCard(ctx context.Context, in *SaveProductCardRequest, opts ...grpc.CallOption) (*SaveProductCardResponse, error) {
	return invoke[SaveProductCardResponse](ctx, c.cc, ExpressionServiceName, "SaveProductCard", in, opts)
}
