package registry

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nggorpc/streamware/rx"
	"github.com/nggorpc/streamware/wire"
)

// GetInbound resolves a named inbound stream parameter to its wire-level
// Observable. The bool is false for a name the connection never created a
// slot for, in which case the binder falls back to an already-completed
// empty stream.
type GetInbound func(name string) (wire.Observable, bool)

// Invoker is the compiled binding-and-invocation function for one route
// method: pure and stateless, so one Invoker is reused across every
// connection that hits its route.
type Invoker func(controller any, scalarParams map[string]string, getInbound GetInbound) wire.Observable

type fieldKind int

const (
	fieldString        fieldKind = iota // raw scalar copy
	fieldParsable                       // numeric, boolean, UUID: parse-from-string, zero on failure
	fieldJSONPrimitive                  // date-time, enum-by-name: quote-wrap then JSON-decode
	fieldJSONOther                      // any other scalar: JSON-decode raw directly
	fieldStream                         // Lazy-sequence-of-T
)

type fieldPlan struct {
	index     []int
	name      string
	kind      fieldKind
	fieldType reflect.Type
	isBody    bool
}

// BodyParamKey is the scalar-map key reserved for the request body; callers
// assembling the scalar map (the middleware) store the decoded body under
// this key. bodyTagValue is the `param:"body"` struct tag value a
// controller author writes to claim it.
const (
	BodyParamKey = "$body"
	bodyKey      = BodyParamKey
	bodyTagValue = "body"
	paramTag     = "param"
)

var (
	uuidType   = reflect.TypeOf(uuid.UUID{})
	timeType   = reflect.TypeOf(time.Time{})
	stringType = reflect.TypeOf("")
)

func isParsable(t reflect.Type) bool {
	if t == uuidType {
		return true
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// isJSONPrimitive recognizes types whose canonical JSON form is a quoted
// string but whose raw query/route value arrives unquoted: time.Time and
// named string types (enums), for example.
func isJSONPrimitive(t reflect.Type) bool {
	if t == timeType {
		return true
	}
	return t.Kind() == reflect.String && t != stringType
}

// buildFieldPlans reflects the exported, `param`-tagged fields of a
// method's params struct into a fixed per-parameter binding plan,
// validating the body-parameter rules along the way.
func buildFieldPlans(methodName string, paramsType reflect.Type) ([]fieldPlan, bool, error) {
	var plans []fieldPlan
	hasBody := false

	for i := 0; i < paramsType.NumField(); i++ {
		f := paramsType.Field(i)
		if f.PkgPath != "" {
			continue // unexported
		}
		tag, tagged := f.Tag.Lookup(paramTag)
		if !tagged || tag == "" {
			continue
		}

		isBody := tag == bodyTagValue
		isStream := rx.IsStreamType(f.Type)

		if isBody && isStream {
			return nil, false, &RouteError{methodName, "body cannot be a stream parameter"}
		}
		if isBody {
			if hasBody {
				return nil, false, &RouteError{methodName, "at most one body parameter is allowed"}
			}
			hasBody = true
		}

		name := tag
		var kind fieldKind
		switch {
		case isStream:
			kind = fieldStream
		case isBody:
			name = bodyKey
			kind = classifyScalar(f.Type)
		default:
			kind = classifyScalar(f.Type)
		}

		plans = append(plans, fieldPlan{
			index:     append([]int(nil), f.Index...),
			name:      name,
			kind:      kind,
			fieldType: f.Type,
			isBody:    isBody,
		})
	}

	return plans, hasBody, nil
}

func classifyScalar(t reflect.Type) fieldKind {
	switch {
	case t == stringType:
		return fieldString
	case isParsable(t):
		return fieldParsable
	case isJSONPrimitive(t):
		return fieldJSONPrimitive
	default:
		return fieldJSONOther
	}
}

// decodeField applies one row of the scalar binding table.
func decodeField(p fieldPlan, raw string, present bool) (reflect.Value, error) {
	switch p.kind {
	case fieldString:
		if !present {
			return reflect.Zero(p.fieldType), nil
		}
		return reflect.ValueOf(raw).Convert(p.fieldType), nil

	case fieldParsable:
		if !present {
			return reflect.Zero(p.fieldType), nil
		}
		v, ok := parseScalar(p.fieldType, raw)
		if !ok {
			return reflect.Zero(p.fieldType), nil
		}
		return v, nil

	case fieldJSONPrimitive:
		if !present {
			return reflect.Zero(p.fieldType), nil
		}
		quoted, err := json.Marshal(raw)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("decode %q: %w", p.name, err)
		}
		target := reflect.New(p.fieldType)
		if err := json.Unmarshal(quoted, target.Interface()); err != nil {
			return reflect.Value{}, fmt.Errorf("decode %q: %w", p.name, err)
		}
		return target.Elem(), nil

	case fieldJSONOther:
		if !present {
			return reflect.Zero(p.fieldType), nil
		}
		target := reflect.New(p.fieldType)
		if err := json.Unmarshal([]byte(raw), target.Interface()); err != nil {
			return reflect.Value{}, fmt.Errorf("decode %q: %w", p.name, err)
		}
		return target.Elem(), nil

	default:
		return reflect.Value{}, fmt.Errorf("decode %q: unhandled field kind", p.name)
	}
}

func parseScalar(t reflect.Type, raw string) (reflect.Value, bool) {
	if t == uuidType {
		u, err := uuid.Parse(raw)
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(u), true
	}

	switch t.Kind() {
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(b).Convert(t), true

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return reflect.Value{}, false
		}
		v := reflect.New(t).Elem()
		v.SetInt(n)
		return v, true

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return reflect.Value{}, false
		}
		v := reflect.New(t).Elem()
		v.SetUint(n)
		return v, true

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return reflect.Value{}, false
		}
		v := reflect.New(t).Elem()
		v.SetFloat(f)
		return v, true

	default:
		return reflect.Value{}, false
	}
}

// buildInvoker compiles the binding plan for one method once, at registry
// build time: a closure over a small instruction list, with no per-call
// reflection beyond the handful of reflect.Value operations needed to set
// fields and call the method.
func buildInvoker(controllerType reflect.Type, methodName string, desc RouteDescriptor) (Invoker, []string, bool, error) {
	method, ok := controllerType.MethodByName(methodName)
	if !ok {
		return nil, nil, false, &RouteError{methodName, "declared in RouteDescriptors but no such exported method"}
	}

	ft := method.Func.Type() // receiver, [params struct] -> Stream
	numParams := ft.NumIn() - 1
	if numParams > 1 {
		return nil, nil, false, &RouteError{methodName, "at most one params struct argument is supported"}
	}
	if ft.NumOut() != 1 || !rx.IsStreamType(ft.Out(0)) {
		return nil, nil, false, &RouteError{methodName, "must return exactly one *rx.Stream[T]"}
	}

	var plans []fieldPlan
	var paramsType reflect.Type
	hasParams := numParams == 1
	hasBodyParam := false

	if hasParams {
		paramsType = ft.In(1)
		if paramsType.Kind() != reflect.Struct {
			return nil, nil, false, &RouteError{methodName, "params argument must be a struct"}
		}
		var err error
		var hasBody bool
		plans, hasBody, err = buildFieldPlans(methodName, paramsType)
		if err != nil {
			return nil, nil, false, err
		}
		hasBodyParam = hasBody
	}

	var inboundNames []string
	for _, p := range plans {
		if p.kind == fieldStream {
			inboundNames = append(inboundNames, p.name)
		}
	}

	methodFunc := method.Func
	plainHTTP := desc.PlainHTTP

	invoker := func(controller any, scalarParams map[string]string, getInbound GetInbound) (result wire.Observable) {
		defer func() {
			if r := recover(); r != nil {
				result = wire.Err(fmt.Errorf("%s: %v", methodName, r))
			}
		}()

		args := make([]reflect.Value, 1, 2)
		args[0] = reflect.ValueOf(controller)

		if hasParams {
			paramsValue := reflect.New(paramsType).Elem()
			for _, p := range plans {
				field := paramsValue.FieldByIndex(p.index)

				if p.kind == fieldStream {
					src, ok := getInbound(p.name)
					if !ok {
						src = wire.Empty()
					}
					field.Set(rx.NewBoundStream(p.fieldType, src))
					continue
				}

				raw, present := scalarParams[p.name]
				v, err := decodeField(p, raw, present)
				if err != nil {
					return wire.Err(err)
				}
				field.Set(v)
			}
			args = append(args, paramsValue)
		}

		out := methodFunc.Call(args)
		obs, ok := rx.ToWire(out[0])
		if !ok {
			return wire.Err(fmt.Errorf("%s: return value is not a stream", methodName))
		}
		if plainHTTP {
			obs = enforceAtMostOneValue(methodName, obs)
		}
		return obs
	}

	return invoker, inboundNames, hasBodyParam, nil
}

// enforceAtMostOneValue wraps a method's outbound Observable to honor the
// PlainHTTP marker: a second emission is a protocol violation reported as
// an error instead of silently forwarded.
func enforceAtMostOneValue(methodName string, src wire.Observable) wire.Observable {
	return wire.FromFunc(func(o wire.Observer) wire.Subscription {
		return src.Subscribe(&singleValueGuard{out: o, methodName: methodName})
	})
}

type singleValueGuard struct {
	out        wire.Observer
	methodName string
	emitted    bool
	errored    bool
}

func (g *singleValueGuard) OnNext(v string) {
	if g.errored {
		return
	}
	if g.emitted {
		g.errored = true
		g.out.OnError(fmt.Errorf("%s: PlainHttp method emitted more than one value", g.methodName))
		return
	}
	g.emitted = true
	g.out.OnNext(v)
}

func (g *singleValueGuard) OnError(err error) {
	if !g.errored {
		g.out.OnError(err)
	}
}

func (g *singleValueGuard) OnCompleted() {
	if !g.errored {
		g.out.OnCompleted()
	}
}
