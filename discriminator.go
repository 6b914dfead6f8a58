package lambdaroute

// Discriminator decides whether a payload has a given structural shape.
// Discriminators never parse the payload and never fail; any mismatch is
// simply false.
type Discriminator interface {
	Match(v View) bool
}

// DiscriminatorFunc adapts a function to the Discriminator interface.
type DiscriminatorFunc func(v View) bool

// Match implements Discriminator.
func (f DiscriminatorFunc) Match(v View) bool { return f(v) }

// HasFields returns a Discriminator that matches when all paths exist.
func HasFields(paths ...string) Discriminator {
	return hasFields{paths: paths}
}

type hasFields struct {
	paths []string
}

func (d hasFields) Match(v View) bool {
	for _, p := range d.paths {
		if !v.HasField(p) {
			return false
		}
	}
	return true
}

// HasString returns a Discriminator that matches when every path holds a
// non-empty string.
func HasString(paths ...string) Discriminator {
	return hasString{paths: paths}
}

type hasString struct {
	paths []string
}

func (d hasString) Match(v View) bool {
	for _, p := range d.paths {
		s, ok := v.GetString(p)
		if !ok || s == "" {
			return false
		}
	}
	return true
}

// IsObject returns a Discriminator that matches when path holds a JSON object.
func IsObject(path string) Discriminator {
	return DiscriminatorFunc(func(v View) bool { return v.IsObject(path) })
}

// FieldEquals returns a Discriminator that matches when the path exists
// and equals the given string value.
func FieldEquals(path, value string) Discriminator {
	return fieldEquals{path: path, value: value}
}

type fieldEquals struct {
	path  string
	value string
}

func (d fieldEquals) Match(v View) bool {
	s, ok := v.GetString(d.path)
	return ok && s == d.value
}

// Every returns a Discriminator that matches when path is a non-empty array
// and every element matches d. An empty array never matches.
func Every(path string, d Discriminator) Discriminator {
	return every{path: path, d: d}
}

type every struct {
	path string
	d    Discriminator
}

func (e every) Match(v View) bool {
	elems, ok := v.Elements(e.path)
	if !ok || len(elems) == 0 {
		return false
	}
	for _, elem := range elems {
		if !e.d.Match(elem) {
			return false
		}
	}
	return true
}

// And returns a Discriminator that matches when all discriminators match.
func And(ds ...Discriminator) Discriminator {
	return and{ds: ds}
}

type and struct {
	ds []Discriminator
}

func (d and) Match(v View) bool {
	for _, disc := range d.ds {
		if !disc.Match(v) {
			return false
		}
	}
	return true
}

// Or returns a Discriminator that matches when any discriminator matches.
func Or(ds ...Discriminator) Discriminator {
	return or{ds: ds}
}

type or struct {
	ds []Discriminator
}

func (d or) Match(v View) bool {
	for _, disc := range d.ds {
		if disc.Match(v) {
			return true
		}
	}
	return false
}
