package notice

import (
	"strings"
	"testing"
	"time"

	"github.com/JGooseK41/NFTServiceApp-sub013/internal/tron"
)

func testAddr(t *testing.T, fill byte) string {
	t.Helper()
	payload := make([]byte, 21)
	payload[0] = 0x41
	for i := 1; i < len(payload); i++ {
		payload[i] = fill
	}
	addr, err := tron.EncodeAddress(payload)
	if err != nil {
		t.Fatalf("encode address: %v", err)
	}
	return addr
}

func TestParseRecipientsShapes(t *testing.T) {
	a := testAddr(t, 0x01)
	b := testAddr(t, 0x02)

	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{"json array", `["` + a + `","` + b + `"]`, []string{a, b}},
		{"json string", `"` + a + `"`, []string{a}},
		{"comma separated", a + ", " + b, []string{a, b}},
		{"bare address", a, []string{a}},
		{"empty", "  ", nil},
		{"dedupes case variants", a + "," + strings.ToLower(a), []string{a}},
		{"keeps legacy lowercased", strings.ToLower(a), []string{strings.ToLower(a)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseRecipients(tc.raw)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestParseRecipientsCanonicalizesValidCasing(t *testing.T) {
	a := testAddr(t, 0x07)
	got := ParseRecipients("  " + a + "  ")
	if len(got) != 1 || got[0] != a {
		t.Fatalf("got %v, want [%s]", got, a)
	}
}

func TestRecordStatusNeverRegresses(t *testing.T) {
	now := time.Now().UTC()
	rec := Record{}
	if rec.Status() != StatusServed {
		t.Fatalf("fresh record status = %s, want served", rec.Status())
	}
	rec.LastViewedAt = &now
	if rec.Status() != StatusViewed {
		t.Fatalf("viewed record status = %s, want viewed", rec.Status())
	}
	rec.Accepted = true
	rec.AcceptedAt = &now
	if rec.Status() != StatusAccepted {
		t.Fatalf("accepted record status = %s, want accepted", rec.Status())
	}
	// a later view does not demote acceptance
	later := now.Add(time.Hour)
	rec.LastViewedAt = &later
	if rec.Status() != StatusAccepted {
		t.Fatalf("accepted record regressed to %s", rec.Status())
	}
}

func TestHasRecipientFoldsCase(t *testing.T) {
	a := testAddr(t, 0x09)
	rec := Record{Recipients: []string{a}}
	if !rec.HasRecipient(strings.ToLower(a)) {
		t.Fatal("lowercased presentation of stored recipient must match")
	}
	if rec.HasRecipient(testAddr(t, 0x0a)) {
		t.Fatal("unrelated wallet must not match")
	}
}

func TestValidateRequiresIdentityAndRecipients(t *testing.T) {
	a := testAddr(t, 0x03)
	if err := (Record{Recipients: []string{a}}).Validate(); err != ErrNoCaseOrToken {
		t.Fatalf("got %v, want ErrNoCaseOrToken", err)
	}
	if err := (Record{CaseNumber: "34-1234"}).Validate(); err != ErrNoRecipients {
		t.Fatalf("got %v, want ErrNoRecipients", err)
	}
	if err := (Record{CaseNumber: "34-1234", Recipients: []string{a}}).Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}
}

func TestMatchesToken(t *testing.T) {
	rec := Record{AlertTokenID: "12", DocumentTokenID: "13"}
	if !rec.MatchesToken("12") || !rec.MatchesToken("13") {
		t.Fatal("both sides of the pair must match")
	}
	if rec.MatchesToken("") || rec.MatchesToken("14") {
		t.Fatal("unrelated token ids must not match")
	}
}
