package model

import "gopkg.in/yaml.v3"

// InstrumentKind distinguishes single equities from funds/ETFs.
type InstrumentKind string

const (
	KindEquity InstrumentKind = "equity"
	KindFund   InstrumentKind = "fund"
)

// Instrument is a tradable security in the configured universe.
// Immutable after seeding except for the Active flag.
type Instrument struct {
	Symbol string         `yaml:"symbol" json:"symbol"`
	Name   string         `yaml:"name" json:"name"`
	Kind   InstrumentKind `yaml:"kind" json:"kind"`
	Active bool           `yaml:"active" json:"active"`
}

// UnmarshalYAML defaults Active to true and Kind to equity, so a minimal
// universe entry of just a symbol and name is tradable. Only an explicit
// active: false deactivates an instrument.
func (i *Instrument) UnmarshalYAML(value *yaml.Node) error {
	type plain Instrument
	p := plain{Active: true, Kind: KindEquity}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*i = Instrument(p)
	return nil
}
