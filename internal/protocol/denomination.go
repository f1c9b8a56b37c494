package protocol

import "fmt"

// Denomination is the currency value of one link of a chain.
type Denomination int32

const (
	One  Denomination = 1
	Five Denomination = 5
	Ten  Denomination = 10
)

// Denominations lists the supported denominations in canonical commitment order.
var Denominations = [...]Denomination{One, Five, Ten}

// Slot returns the position of d in Denominations.
func (d Denomination) Slot() (int, error) {
	for i, v := range Denominations {
		if v == d {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownDenomination, d)
}

// Valid reports whether d is one of the supported denominations.
func (d Denomination) Valid() bool {
	_, err := d.Slot()
	return err == nil
}

// ParseDenomination validates a raw integer denomination.
func ParseDenomination(v int32) (Denomination, error) {
	d := Denomination(v)
	if !d.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownDenomination, v)
	}
	return d, nil
}
