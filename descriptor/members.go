package descriptor

import (
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/wippyai/graphcodec/errors"
)

const tagName = "graph"

type memberTag struct {
	name       string
	ordinal    int
	hasOrdinal bool
	include    bool
	skip       bool
}

// parseTag reads `graph:"name,ordinal=N,include"` and `graph:"-"`.
func parseTag(tag string) (memberTag, error) {
	if tag == "-" {
		return memberTag{skip: true}, nil
	}
	parts := strings.Split(tag, ",")
	mt := memberTag{name: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		switch {
		case p == "include":
			mt.include = true
		case strings.HasPrefix(p, "ordinal="):
			n, err := strconv.Atoi(strings.TrimPrefix(p, "ordinal="))
			if err != nil {
				return mt, err
			}
			mt.ordinal = n
			mt.hasOrdinal = true
		case p == "":
		default:
			return mt, errors.InvalidInput(errors.PhaseDescribe, "unknown tag option "+strconv.Quote(p))
		}
	}
	return mt, nil
}

func buildMembers(d *TypeDescriptor, t reflect.Type, cfg *typeConfig, opts MemberOptions) ([]*MemberDescriptor, error) {
	if cfg == nil {
		cfg = &typeConfig{}
	}
	var members []*MemberDescriptor

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Name == "_" {
			continue
		}
		raw, hasTag := f.Tag.Lookup(tagName)
		tag, err := parseTag(raw)
		if err != nil {
			return nil, errors.New(errors.PhaseDescribe, errors.KindRegistration).
				GoType(t.String()).
				Path(f.Name).
				Cause(err).
				Detail("invalid %s tag %q", tagName, raw).
				Build()
		}
		if tag.skip || cfg.excludes[f.Name] {
			continue
		}

		forced := tag.include || cfg.includes[f.Name]
		selected := opts.IncludeFields &&
			(f.IsExported() || opts.IncludeUnexported) &&
			(!opts.OptIn || hasTag)
		if !forced && !selected {
			continue
		}
		if _, ok := kindOf(f.Type); !ok {
			if forced {
				return nil, errors.Unsupported(errors.PhaseDescribe, f.Type.String(), "member "+f.Name+" has no wire form")
			}
			continue
		}

		m := &MemberDescriptor{
			Name:     f.Name,
			GoName:   f.Name,
			Ordinal:  i,
			CanGet:   true,
			CanSet:   true,
			owner:    d,
			goType:   f.Type,
			index:    f.Index,
			exported: f.IsExported(),
		}
		if tag.name != "" {
			m.Name = tag.name
		}
		if tag.hasOrdinal {
			m.Ordinal = tag.ordinal
		}
		applyOverrides(m, cfg)
		members = append(members, m)
	}

	for k, p := range cfg.properties {
		if cfg.excludes[p.name] {
			continue
		}
		if !opts.IncludeProperties && !cfg.includes[p.name] {
			continue
		}
		m := &MemberDescriptor{
			Name:     p.name,
			GoName:   p.name,
			Ordinal:  t.NumField() + k,
			CanGet:   p.get != nil,
			CanSet:   p.set != nil,
			Property: true,
			owner:    d,
			goType:   p.goType,
			get:      p.get,
			set:      p.set,
		}
		applyOverrides(m, cfg)
		members = append(members, m)
	}

	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Ordinal < members[j].Ordinal
	})
	return members, nil
}

func applyOverrides(m *MemberDescriptor, cfg *typeConfig) {
	if name, ok := cfg.renames[m.GoName]; ok {
		m.Name = name
	}
	if ord, ok := cfg.ordinals[m.GoName]; ok {
		m.Ordinal = ord
	}
}
