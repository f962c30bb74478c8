package organize

import "strings"

// hostnameAllowed implements §4.G's hostname policy: a name is allowed if
// its suffix matches one of local_domains, with trailing-dot
// normalization on both sides.
func hostnameAllowed(name string, localDomains []string) bool {
	n := strings.TrimSuffix(name, ".")
	for _, d := range localDomains {
		d = strings.TrimSuffix(d, ".")
		if d == "" {
			continue
		}
		if n == d || strings.HasSuffix(n, "."+d) {
			return true
		}
	}
	return false
}
