package resolution

import (
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/spellforge/internal/formula"
)

// StatContext builds a context from a stat sheet such as {"spi": 14, "STR": 9}.
// Names are upper-cased.
func StatContext(stats map[string]float64) formula.Context {
	upper := make(map[string]float64, len(stats))
	for k, v := range stats {
		upper[strings.ToUpper(k)] = v
	}
	return formula.ContextFromMap(upper)
}

// Resolver resolves formulas for a resolution method and logs every result.
type Resolver struct {
	cache  *formula.Cache
	logger *zap.Logger
}

// NewResolver creates a Resolver. cache may be nil to parse on every call.
//
// Precondition: logger must be non-nil.
func NewResolver(cache *formula.Cache, logger *zap.Logger) *Resolver {
	return &Resolver{cache: cache, logger: logger}
}

// Resolution is the outcome of resolving one formula.
type Resolution struct {
	Source string
	Method Method
	Value  float64
	// Missing lists vocabulary tokens of Method that the formula references
	// but the context does not bind.
	Missing []string
	// Foreign lists referenced tokens that belong to a different method.
	Foreign []string
}

// Resolve parses source and evaluates it against ctx.
//
// Postcondition: Returns the same value as formula.Evaluate for the parsed
// source; method never changes the result.
func (r *Resolver) Resolve(source string, ctx formula.Context, method Method) (Resolution, error) {
	expr, err := r.cache.Parse(source)
	if err != nil {
		r.logger.Debug("formula rejected", zap.String("source", source), zap.Error(err))
		return Resolution{}, err
	}
	res, err := r.ResolveExpr(expr, ctx, method)
	res.Source = source
	return res, err
}

// ResolveExpr evaluates a parsed formula against ctx.
func (r *Resolver) ResolveExpr(expr formula.Expression, ctx formula.Context, method Method) (Resolution, error) {
	res := Resolution{Source: expr.String(), Method: method}
	res.Missing, res.Foreign = r.audit(expr, ctx, method)
	if len(res.Missing) > 0 || len(res.Foreign) > 0 {
		r.logger.Warn("formula vocabulary mismatch",
			zap.String("formula", res.Source),
			zap.Stringer("method", method),
			zap.Strings("missing", res.Missing),
			zap.Strings("foreign", res.Foreign),
		)
	}

	v, err := formula.Evaluate(expr, ctx)
	if err != nil {
		r.logger.Debug("formula evaluation failed",
			zap.String("formula", res.Source),
			zap.Stringer("method", method),
			zap.Error(err),
		)
		return res, err
	}
	res.Value = v
	r.logger.Debug("formula resolved",
		zap.String("formula", res.Source),
		zap.Stringer("method", method),
		zap.Int("bindings", ctx.Len()),
		zap.Float64("value", v),
	)
	return res, nil
}

func (r *Resolver) audit(expr formula.Expression, ctx formula.Context, method Method) (missing, foreign []string) {
	for _, name := range formula.Variables(expr) {
		owner, ok := MethodFor(name)
		if !ok {
			continue
		}
		if owner != method {
			foreign = append(foreign, name)
			continue
		}
		if !ctx.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing, foreign
}
