package humastar

import (
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// Links maps operation paths to their RFC 8288 Link header values.
type Links map[string][]string

// Link formats a single RFC 8288 link value.
func Link(href, rel string) string {
	return fmt.Sprintf(`<%s>; rel="%s"`, href, rel)
}

// LinkTransformer returns a Huma Transformer that injects the static links
// of the matched operation, a self link for item paths, pagination links
// from [Pager] bodies and action links from [Actor] bodies.
func LinkTransformer(links Links) huma.Transformer {
	return func(ctx huma.Context, status string, v any) (any, error) {
		op := ctx.Operation()
		if op == nil {
			return v, nil
		}

		for _, link := range links[op.Path] {
			ctx.AppendHeader("Link", link)
		}

		if strings.Contains(op.Path, "{") {
			ctx.AppendHeader("Link", Link(ctx.URL().Path, "self"))
		}

		if p, ok := v.(Pager); ok {
			for _, link := range p.PaginationLinks(ctx.URL().Path) {
				ctx.AppendHeader("Link", link)
			}
		}

		if a, ok := v.(Actor); ok {
			for _, action := range a.Actions() {
				ctx.AppendHeader("Link", action.LinkHeader())
			}
		}

		return v, nil
	}
}
