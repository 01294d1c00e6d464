package project

// Rule maps a manifest predicate to a project type. Rules are evaluated top to
// bottom and the first match wins.
type Rule struct {
	Name  string
	Match func(m *Manifest) bool
	Type  Type
}

func hasDependency(name string) func(*Manifest) bool {
	return func(m *Manifest) bool { return m.HasDependency(name) }
}

func hasScript(name string) func(*Manifest) bool {
	return func(m *Manifest) bool { return m.HasScript(name) }
}

var (
	nextRule         = Rule{Name: "dependency next", Match: hasDependency("next"), Type: NextJS}
	viteRule         = Rule{Name: "dependency vite", Match: hasDependency("vite"), Type: Vite}
	legacyViteRule   = Rule{Name: "dependency vite or build script", Match: func(m *Manifest) bool { return m.HasDependency("vite") || m.HasScript("build") }, Type: Vite}
	reactScriptsRule = Rule{Name: "dependency react-scripts", Match: hasDependency("react-scripts"), Type: CRA}
	buildScriptRule  = Rule{Name: "build script", Match: hasScript("build"), Type: Node}
	manifestRule     = Rule{Name: "manifest present", Match: func(*Manifest) bool { return true }, Type: Static}
)

// DefaultRules returns the manifest rule table: react-scripts wins over a
// generic build script, and a build script alone yields node.
func DefaultRules() []Rule {
	return []Rule{nextRule, viteRule, reactScriptsRule, buildScriptRule, manifestRule}
}

// LegacyRules returns the historical table where any build script matches
// vite before react-scripts is considered. The cra rule is then reachable
// only without a build script, and the node rule not at all.
func LegacyRules() []Rule {
	return []Rule{nextRule, legacyViteRule, reactScriptsRule, buildScriptRule, manifestRule}
}

// Evaluate returns the first rule matching m.
func Evaluate(rules []Rule, m *Manifest) (Rule, bool) {
	for _, r := range rules {
		if r.Match != nil && r.Match(m) {
			return r, true
		}
	}
	return Rule{}, false
}
