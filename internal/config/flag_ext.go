package config

import "strconv"

// setFlag is a flag.Value that remembers whether it was given on the command
// line. JSON config only fills settings whose flag stayed unset.
type setFlag[T any] struct {
	v      T
	set    bool
	parse  func(string) (T, error)
	format func(T) string
	isBool bool
}

func (f *setFlag[T]) String() string {
	if f.format == nil {
		return ""
	}
	return f.format(f.v)
}

func (f *setFlag[T]) Set(s string) error {
	v, err := f.parse(s)
	if err != nil {
		return err
	}
	f.v, f.set = v, true
	return nil
}

type (
	strFlag  = setFlag[string]
	intFlag  = setFlag[int]
	boolFlag = setFlag[bool]
)

func newStrFlag(def string) *strFlag {
	return &strFlag{v: def, parse: func(s string) (string, error) { return s, nil }, format: func(s string) string { return s }}
}

func newIntFlag(def int) *intFlag {
	return &intFlag{v: def, parse: strconv.Atoi, format: strconv.Itoa}
}

func newBoolFlag(def bool) *boolFlag {
	return &boolFlag{v: def, parse: strconv.ParseBool, format: strconv.FormatBool, isBool: true}
}

// IsBoolFlag lets switches such as -mutate go without a value.
func (f *setFlag[T]) IsBoolFlag() bool { return f.isBool }
