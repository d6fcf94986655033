package dm

import (
	"fmt"
	"strings"
)

// SpecialKind is a category of non-code file referenced by an environment.
type SpecialKind int

const (
	SpecialMaps SpecialKind = iota
	SpecialScripts
	SpecialSkins
)

// SpecialKinds lists every category in a fixed order.
var SpecialKinds = []SpecialKind{SpecialMaps, SpecialScripts, SpecialSkins}

func (k SpecialKind) String() string {
	switch k {
	case SpecialMaps:
		return "maps"
	case SpecialScripts:
		return "scripts"
	case SpecialSkins:
		return "skins"
	default:
		return fmt.Sprintf("special(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler so SpecialKind can key JSON maps.
func (k SpecialKind) MarshalText() ([]byte, error) {
	switch k {
	case SpecialMaps, SpecialScripts, SpecialSkins:
		return []byte(k.String()), nil
	}
	return nil, fmt.Errorf("dm: unknown special file kind %d", int(k))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *SpecialKind) UnmarshalText(text []byte) error {
	for _, kind := range SpecialKinds {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("dm: unknown special file kind %q", text)
}

// specialKindForExt maps an include extension to its category.
func specialKindForExt(ext string) (SpecialKind, bool) {
	switch strings.ToLower(ext) {
	case ".dmm":
		return SpecialMaps, true
	case ".dms":
		return SpecialScripts, true
	case ".dmf":
		return SpecialSkins, true
	}
	return 0, false
}
