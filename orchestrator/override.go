package orchestrator

import (
	"strings"

	"github.com/use-agent/pageclip/adapter"
	"github.com/use-agent/pageclip/dom"
)

// Override routes a hostname to an adapter ahead of the registry, with an
// optional cheap pre-check that can reject the page before extraction.
type Override struct {
	Name     string
	Match    func(hostname string) bool
	Adapter  adapter.Adapter
	Precheck func(page *dom.Page) error
}

// DefaultOverrides is the ordered override list: chat transcripts, Jike
// posts, and Zsxq topics, which must show a detail panel.
func DefaultOverrides(reg *adapter.Registry) []Override {
	var out []Override
	if a, ok := reg.Named(adapter.NameDeepSeek); ok {
		out = append(out, Override{
			Name:    adapter.NameDeepSeek,
			Match:   domainOrSubdomain("deepseek.com"),
			Adapter: a,
		})
	}
	if a, ok := reg.Named(adapter.NameJike); ok {
		out = append(out, Override{
			Name:    adapter.NameJike,
			Match:   func(h string) bool { return h == "web.okjike.com" },
			Adapter: a,
		})
	}
	if a, ok := reg.Named(adapter.NameZsxq); ok {
		o := Override{
			Name:    adapter.NameZsxq,
			Match:   domainOrSubdomain("zsxq.com"),
			Adapter: a,
		}
		if z, ok := a.(*adapter.Zsxq); ok {
			o.Precheck = func(page *dom.Page) error {
				if !z.HasPanel(page) {
					return extractionFailed("zsxq: no topic detail panel; open a topic detail page", nil)
				}
				return nil
			}
		}
		out = append(out, o)
	}
	return out
}

func domainOrSubdomain(domain string) func(string) bool {
	return func(h string) bool {
		return h == domain || strings.HasSuffix(h, "."+domain)
	}
}
