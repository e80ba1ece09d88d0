package ledger

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/jvs-project/timelock/pkg/errclass"
)

var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)

// NameToAddress derives a stable address from a human-readable account name,
// the last 20 bytes of keccak256(name).
func NameToAddress(name string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(name))[12:])
}

// Resolve parses s as a hex address, or as an account name if it is not one.
func Resolve(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if common.IsHexAddress(s) {
		addr := common.HexToAddress(s)
		if addr == (common.Address{}) {
			return common.Address{}, errclass.ErrInvalidAddress.WithMessage("zero address")
		}
		return addr, nil
	}
	if strings.HasPrefix(s, "0x") || !namePattern.MatchString(s) {
		return common.Address{}, errclass.ErrInvalidAddress.WithMessagef("%q is neither an address nor an account name", s)
	}
	return NameToAddress(s), nil
}
