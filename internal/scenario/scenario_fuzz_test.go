package scenario_test

import (
	"testing"

	"github.com/jvs-project/timelock/internal/scenario"
)

// FuzzParse feeds arbitrary documents to Parse. Accepted scenarios must name
// an owner and give every step a recognised op.
//
//	go test -fuzz=FuzzParse -fuzztime=30s ./internal/scenario/
func FuzzParse(f *testing.F) {
	f.Add([]byte(""))
	f.Add([]byte("name: x\ndeploy: {owner: owner}\n"))
	f.Add([]byte("deploy: {owner: owner}\nsteps:\n  - increase_to: unlock+1h\n"))
	f.Add([]byte("deploy: {owner: owner}\nsteps:\n  - deposit: {from: a, amount: 1}\n    withdraw: {}\n"))
	f.Add([]byte("accounts: [{name: vault}]\ndeploy: {owner: vault}\n"))
	f.Add([]byte("{{{{"))

	f.Fuzz(func(t *testing.T, data []byte) {
		sc, err := scenario.Parse(data)
		if err != nil {
			return
		}
		if sc.Deploy.Owner == "" {
			t.Fatalf("accepted scenario without an owner: %q", data)
		}
		for i := range sc.Steps {
			if sc.Steps[i].Op() == "unknown" {
				t.Fatalf("accepted step %d without an op: %q", i, data)
			}
		}
	})
}
