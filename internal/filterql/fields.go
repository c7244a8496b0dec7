package filterql

import (
	"maps"
	"slices"
)

type Field string

const (
	FieldTag     = Field("tag")
	FieldPackage = Field("package")
	FieldProcess = Field("process")
	FieldMessage = Field("message")
	FieldLine    = Field("line")

	FieldLevel     = Field("level")
	FieldFromLevel = Field("fromLevel")
	FieldToLevel   = Field("toLevel")
	FieldAge       = Field("age")
	FieldIs        = Field("is")
)

// PackageMine is the package value that selects the applications of the
// current project.
const PackageMine = "mine"

var allFields = []Field{
	FieldTag,
	FieldPackage,
	FieldProcess,
	FieldMessage,
	FieldLine,
	FieldLevel,
	FieldFromLevel,
	FieldToLevel,
	FieldAge,
	FieldIs,
}

func (f Field) IsValid() bool {
	return slices.Contains(allFields, f)
}

// IsString reports whether values of f are matched as text.
func (f Field) IsString() bool {
	switch f {
	case FieldTag, FieldPackage, FieldProcess, FieldMessage, FieldLine:
		return true
	}

	return false
}

// KeySet holds the key names recognized by the lexer. String keys accept
// negation, the regex and exact suffixes and quoted values. Value keys
// only accept the plain "name:" form.
type KeySet struct {
	strings map[string]Field
	values  map[string]Field
}

var defaultKeys = NewKeySet(
	map[string]Field{
		"tag":     FieldTag,
		"package": FieldPackage,
		"process": FieldProcess,
		"app":     FieldProcess,
		"message": FieldMessage,
		"msg":     FieldMessage,
		"line":    FieldLine,
	},
	map[string]Field{
		"level":     FieldLevel,
		"fromLevel": FieldFromLevel,
		"toLevel":   FieldToLevel,
		"age":       FieldAge,
		"is":        FieldIs,
	},
)

// DefaultKeySet returns the key set used when no other set is given.
func DefaultKeySet() *KeySet {
	return defaultKeys
}

// NewKeySet copies both maps, later changes to the arguments do not affect
// the returned set.
func NewKeySet(stringKeys, valueKeys map[string]Field) *KeySet {
	return &KeySet{
		strings: maps.Clone(stringKeys),
		values:  maps.Clone(valueKeys),
	}
}

func (ks *KeySet) IsStringKey(name string) bool {
	_, ok := ks.strings[name]
	return ok
}

func (ks *KeySet) IsValueKey(name string) bool {
	_, ok := ks.values[name]
	return ok
}

// Lookup returns the canonical field for a key name.
func (ks *KeySet) Lookup(name string) (Field, bool) {
	if f, ok := ks.strings[name]; ok {
		return f, true
	}

	f, ok := ks.values[name]

	return f, ok
}

// Names returns all key names in sorted order.
func (ks *KeySet) Names() []string {
	names := make([]string, 0, len(ks.strings)+len(ks.values))
	names = slices.AppendSeq(names, maps.Keys(ks.strings))
	names = slices.AppendSeq(names, maps.Keys(ks.values))

	slices.Sort(names)

	return names
}
