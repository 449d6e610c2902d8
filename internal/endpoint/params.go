package endpoint

// InputParameter declares one request parameter an Endpoint accepts: its
// JSON type, whether it's required, a default used when absent, the
// alias names a caller may use instead of the canonical name, and the
// dependsOn/exclusive constraints checked against sibling parameters
// after alias resolution.
type InputParameter struct {
	Type      string
	Required  bool
	Default   interface{}
	Aliases   []string
	DependsOn []string
	Exclusive []string
	Options   []string // enum of allowed values; empty means unconstrained
}
