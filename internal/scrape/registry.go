package scrape

import (
	"fmt"
	"sort"
)

var constructors = map[string]func(Options) Adapter{
	"SREALITY":      func(o Options) Adapter { return newSreality(o) },
	"REMAX":         func(o Options) Adapter { return newRemax(o) },
	"MMREALITY":     func(o Options) Adapter { return newMMReality(o) },
	"CENTURY21":     func(o Options) Adapter { return newCentury21(o) },
	"IDNES":         func(o Options) Adapter { return newIdnes(o) },
	"REAS":          func(o Options) Adapter { return newReas(o) },
	"ZNOJMOREALITY": func(o Options) Adapter { return newZnojmoReality(o) },
	"PRODEJMETO":    func(o Options) Adapter { return newProdejmeTo(o) },
	"PREMIAREALITY": func(o Options) Adapter { return newPremiaReality(o) },
	"HVREALITY":     func(o Options) Adapter { return newHVReality(o) },
	"DELUXREALITY":  func(o Options) Adapter { return newDeluxReality(o) },
	"LEXAMO":        func(o Options) Adapter { return newLexamo(o) },
	"NEMZNOJMO":     func(o Options) Adapter { return newNemZnojmo(o) },
}

// New builds the adapter for a source code.
func New(code string, opts Options) (Adapter, error) {
	ctor, ok := constructors[code]
	if !ok {
		return nil, fmt.Errorf("unknown source code %q", code)
	}
	return ctor(opts), nil
}

// Codes lists every registered source code, sorted.
func Codes() []string {
	codes := make([]string, 0, len(constructors))
	for code := range constructors {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
