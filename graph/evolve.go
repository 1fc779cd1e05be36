package graph

import (
	"fmt"
	"math"
	"reflect"

	"github.com/wippyai/graphcodec/descriptor"
	"github.com/wippyai/graphcodec/errors"
)

// memberPlan matches the wire members of wt to local members by wire name.
// A nil entry marks a member the local type no longer has.
func (wt *wireType) memberPlan() []*descriptor.MemberDescriptor {
	if wt.plan != nil || len(wt.members) == 0 {
		return wt.plan
	}
	wt.plan = make([]*descriptor.MemberDescriptor, len(wt.members))
	for i, m := range wt.members {
		wt.plan[i] = wt.local.Member(m.name)
	}
	return wt.plan
}

// populate reads the members of wt into the addressable struct sv. Local
// members absent from the stream keep the values the allocation strategy
// gave them. Wire members with no local counterpart are returned as LostData.
func (d *Decoder) populate(sv reflect.Value, wt *wireType) (LostData, error) {
	plan := wt.memberPlan()
	var lost LostData

	for i, wm := range wt.members {
		d.path = append(d.path, wm.name)
		err := d.populateMember(sv, wt, wm, plan[i], &lost)
		d.path = d.path[:len(d.path)-1]
		if err != nil {
			return nil, err
		}
	}
	return lost, nil
}

func (d *Decoder) populateMember(sv reflect.Value, wt *wireType, wm wireMember, lm *descriptor.MemberDescriptor, lost *LostData) error {
	v, err := d.readValue(wm.typ)
	if err != nil {
		return err
	}

	switch {
	case lm == nil:
		*lost = append(*lost, Field{Name: wm.name, Value: export(v)})
		d.diagnose(SeverityInfo, errors.KindReshape, wt.identity, "member no longer exists; kept as lost data", nil)
		return nil
	case !lm.CanSet:
		d.diagnose(SeverityDebug, errors.KindMemberAccess, wt.identity, "member is read-only; value dropped", nil)
		return nil
	}

	cv, ok := convert(v, lm.GoType())
	if !ok {
		d.diagnose(SeverityWarn, errors.KindMemberAccess, wt.identity,
			fmt.Sprintf("wire %s value %s does not convert to %s; value dropped", wm.typ.identity, typeName(v), lm.GoType()), nil)
		return nil
	}
	if err := setMember(lm, sv, cv); err != nil {
		d.diagnose(SeverityWarn, errors.KindMemberAccess, wt.identity, "setting member failed; value dropped", err)
	}
	return nil
}

func setMember(m *descriptor.MemberDescriptor, sv, v reflect.Value) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return m.Set(sv, v)
}

// convert adapts a decoded value to the Go type to. Beyond plain assignment
// it dereferences pointers, wraps values into pointers, and converts between
// numeric kinds when the value fits. Float to integer is refused.
func convert(v reflect.Value, to reflect.Type) (reflect.Value, bool) {
	if !v.IsValid() {
		return reflect.Zero(to), true
	}
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Zero(to), true
		}
		v = v.Elem()
	}

	from := v.Type()
	switch {
	case from.AssignableTo(to):
		return v, true
	case from.Kind() == reflect.Pointer && !v.IsNil() && from.Elem().AssignableTo(to):
		return v.Elem(), true
	case from.Kind() == reflect.Pointer && v.IsNil() && to.Kind() == reflect.Pointer:
		return reflect.Zero(to), true
	case to.Kind() == reflect.Pointer && from.AssignableTo(to.Elem()):
		p := reflect.New(to.Elem())
		p.Elem().Set(v)
		return p, true
	}

	if cv, ok, numeric := convertNumber(v, to); numeric {
		return cv, ok
	}
	if from.Kind() == to.Kind() && from.ConvertibleTo(to) {
		return v.Convert(to), true
	}
	if to.Kind() == reflect.Pointer && from.Kind() == to.Elem().Kind() && from.ConvertibleTo(to.Elem()) {
		p := reflect.New(to.Elem())
		p.Elem().Set(v.Convert(to.Elem()))
		return p, true
	}
	return reflect.Value{}, false
}

type numClass uint8

const (
	notNumber numClass = iota
	signed
	unsigned
	float
)

func classOf(k reflect.Kind) numClass {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return signed
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return unsigned
	case reflect.Float32, reflect.Float64:
		return float
	}
	return notNumber
}

// convertNumber widens or narrows between numeric kinds. numeric is false
// when either side is not a number.
func convertNumber(v reflect.Value, to reflect.Type) (out reflect.Value, ok, numeric bool) {
	src, dst := classOf(v.Kind()), classOf(to.Kind())
	if src == notNumber || dst == notNumber {
		return reflect.Value{}, false, false
	}
	out = reflect.New(to).Elem()

	switch src {
	case signed:
		n := v.Int()
		switch dst {
		case signed:
			if out.OverflowInt(n) {
				return reflect.Value{}, false, true
			}
			out.SetInt(n)
		case unsigned:
			if n < 0 || out.OverflowUint(uint64(n)) {
				return reflect.Value{}, false, true
			}
			out.SetUint(uint64(n))
		case float:
			out.SetFloat(float64(n))
		}
	case unsigned:
		n := v.Uint()
		switch dst {
		case signed:
			if n > math.MaxInt64 || out.OverflowInt(int64(n)) {
				return reflect.Value{}, false, true
			}
			out.SetInt(int64(n))
		case unsigned:
			if out.OverflowUint(n) {
				return reflect.Value{}, false, true
			}
			out.SetUint(n)
		case float:
			out.SetFloat(float64(n))
		}
	case float:
		if dst != float {
			return reflect.Value{}, false, true
		}
		f := v.Float()
		if out.OverflowFloat(f) {
			return reflect.Value{}, false, true
		}
		out.SetFloat(f)
	}
	return out, true, true
}
