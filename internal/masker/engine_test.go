package masker

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func mustMask(t *testing.T, e *Engine, text string) Result {
	t.Helper()
	res, err := e.Mask(context.Background(), text)
	if err != nil {
		t.Fatalf("Mask(%q): %v", text, err)
	}
	return res
}

// staticRecognizer returns the same recognitions for every call.
func staticRecognizer(recs ...Recognition) Recognizer {
	return RecognizerFunc(func(context.Context, string) ([]Recognition, error) {
		return recs, nil
	})
}

func TestMaskEmailAndPhone(t *testing.T) {
	res := mustMask(t, New(), "Email me at a@b.com or call 9876543210.")

	if want := "Email me at [email] or call [phone_number]."; res.MaskedText != want {
		t.Errorf("masked text\n  want: %q\n   got: %q", want, res.MaskedText)
	}
	want := []EntityRecord{
		{Position: [2]int{12, 19}, Classification: "email", Entity: "a@b.com"},
		{Position: [2]int{28, 38}, Classification: "phone_number", Entity: "9876543210"},
	}
	if !reflect.DeepEqual(res.Entities, want) {
		t.Errorf("entities\n  want: %+v\n   got: %+v", want, res.Entities)
	}
}

func TestMaskCardNumberNotFragmented(t *testing.T) {
	res := mustMask(t, New(), "My card is 1234567890123456 and cvv 123.")

	if want := "My card is [credit_debit_no] and cvv [cvv_no]."; res.MaskedText != want {
		t.Errorf("masked text: got %q, want %q", res.MaskedText, want)
	}
	want := []EntityRecord{
		{Position: [2]int{11, 27}, Classification: "credit_debit_no", Entity: "1234567890123456"},
		{Position: [2]int{36, 39}, Classification: "cvv_no", Entity: "123"},
	}
	if !reflect.DeepEqual(res.Entities, want) {
		t.Errorf("entities\n  want: %+v\n   got: %+v", want, res.Entities)
	}
}

func TestDigitRunLengths(t *testing.T) {
	cases := []struct {
		text  string
		class string // "" = nothing masked
	}{
		{"1234567890123456", ClassCreditDebit},
		{"123456789012", ClassAadhar},
		{"9876543210", ClassPhone},
		{"345", ClassCVV},
		{"12345678901234567", ""}, // 17 digits matches no rule
		{"12345", ""},
		{"1234", ""},
	}
	for _, c := range cases {
		t.Run(c.text, func(t *testing.T) {
			res := mustMask(t, New(), c.text)
			if c.class == "" {
				if len(res.Entities) != 0 {
					t.Fatalf("expected no entities, got %+v", res.Entities)
				}
				return
			}
			if len(res.Entities) != 1 {
				t.Fatalf("expected exactly one entity, got %+v", res.Entities)
			}
			got := res.Entities[0]
			if got.Classification != c.class || got.Entity != c.text {
				t.Errorf("got %+v, want whole token as %s", got, c.class)
			}
		})
	}
}

func TestDatesAndExpiry(t *testing.T) {
	cases := []struct {
		text, masked string
	}{
		{"Born 10/06/2003, card expires 12/25.", "Born [dob], card expires [expiry_no]."},
		{"dob 1999-01-31", "dob [dob]"},
		{"dob 31-01-1999", "dob [dob]"},
		// dob and expiry both start at the same offset; dob is registered first.
		{"x 12/25/2020 y", "x [dob] y"},
		// month out of range is not an expiry
		{"Ping 13/25 and 00/12", "Ping 13/25 and 00/12"},
	}
	for _, c := range cases {
		if got := mustMask(t, New(), c.text).MaskedText; got != c.masked {
			t.Errorf("Mask(%q) = %q, want %q", c.text, got, c.masked)
		}
	}
}

func TestFullNamePattern(t *testing.T) {
	res := mustMask(t, New(), "meet John Smith at noon")
	want := []EntityRecord{{Position: [2]int{5, 15}, Classification: "full_name", Entity: "John Smith"}}
	if !reflect.DeepEqual(res.Entities, want) {
		t.Errorf("got %+v, want %+v", res.Entities, want)
	}
	if res.MaskedText != "meet [full_name] at noon" {
		t.Errorf("masked text: %q", res.MaskedText)
	}
}

func TestEmptyInput(t *testing.T) {
	res := mustMask(t, New(WithRecognizer(staticRecognizer(Recognition{0, 3, "PERSON"}))), "")
	if res.MaskedText != "" || res.Entities == nil || len(res.Entities) != 0 {
		t.Errorf("expected empty text and empty non-nil entities, got %+v", res)
	}
}

func TestNoPIIReturnsTextUnchanged(t *testing.T) {
	text := "nothing to see here, move along"
	res := mustMask(t, New(), text)
	if res.MaskedText != text || len(res.Entities) != 0 {
		t.Errorf("got %+v", res)
	}
}

func TestRecognizerCategories(t *testing.T) {
	text := "ravi from acme in pune near ganga"
	rec := staticRecognizer(
		Recognition{Start: 0, End: 4, Category: "PERSON"},
		Recognition{Start: 10, End: 14, Category: "ORG"},
		Recognition{Start: 18, End: 22, Category: "GPE"},
		Recognition{Start: 28, End: 33, Category: "LOC"},
		Recognition{Start: 5, End: 9, Category: "DATE"}, // not accepted
	)
	res := mustMask(t, New(WithRecognizer(rec)), text)

	if want := "[full_name] from [org] in [gpe] near [loc]"; res.MaskedText != want {
		t.Errorf("masked text\n  want: %q\n   got: %q", want, res.MaskedText)
	}
	gotClasses := make([]string, 0, len(res.Entities))
	for _, e := range res.Entities {
		gotClasses = append(gotClasses, e.Classification)
	}
	if want := []string{"full_name", "ORG", "GPE", "LOC"}; !reflect.DeepEqual(gotClasses, want) {
		t.Errorf("classifications: got %v, want %v", gotClasses, want)
	}
}

func TestPatternWinsTieAgainstRecognizer(t *testing.T) {
	// Both start at 0: the full_name rule is emitted before the recognizer.
	rec := staticRecognizer(Recognition{Start: 0, End: 5, Category: "ORG"})
	res := mustMask(t, New(WithRecognizer(rec)), "Alice Brown called")

	if len(res.Entities) != 1 {
		t.Fatalf("expected one entity, got %+v", res.Entities)
	}
	if got := res.Entities[0]; got.Classification != ClassFullName || got.Entity != "Alice Brown" {
		t.Errorf("got %+v, want full_name Alice Brown", got)
	}
}

func TestEarlierStartWinsOverLongerSpan(t *testing.T) {
	// The recognizer span starts first and swallows the phone number.
	rec := staticRecognizer(Recognition{Start: 0, End: 12, Category: "ORG"})
	res := mustMask(t, New(WithRecognizer(rec)), "acme 9876543210 ok")

	if res.MaskedText != "[org]210 ok" {
		t.Errorf("masked text: %q", res.MaskedText)
	}
	if len(res.Entities) != 1 || res.Entities[0].Entity != "acme 9876543" {
		t.Errorf("entities: %+v", res.Entities)
	}
}

func TestRecognizerSpansOutsideTextDropped(t *testing.T) {
	rec := staticRecognizer(
		Recognition{Start: -1, End: 3, Category: "PERSON"},
		Recognition{Start: 2, End: 99, Category: "ORG"},
		Recognition{Start: 4, End: 4, Category: "GPE"},
	)
	res := mustMask(t, New(WithRecognizer(rec)), "short text")
	if len(res.Entities) != 0 || res.MaskedText != "short text" {
		t.Errorf("expected nothing masked, got %+v", res)
	}
}

func TestRecognizerReceivesOriginalText(t *testing.T) {
	var seen string
	rec := RecognizerFunc(func(_ context.Context, text string) ([]Recognition, error) {
		seen = text
		return nil, nil
	})
	text := "Dear Ms. Rao, Welcome"
	mustMask(t, New(WithRecognizer(rec)), text)
	if seen != text {
		t.Errorf("recognizer got %q, want %q", seen, text)
	}
}

func TestRecognizerFailurePropagates(t *testing.T) {
	boom := errors.New("connection refused")
	rec := RecognizerFunc(func(context.Context, string) ([]Recognition, error) { return nil, boom })

	_, err := New(WithRecognizer(rec)).Mask(context.Background(), "call 9876543210")
	if !errors.Is(err, ErrRecognitionUnavailable) {
		t.Fatalf("expected ErrRecognitionUnavailable, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected cause to be wrapped, got %v", err)
	}
}

func TestRecognizerFailureFallbackWhenOptedIn(t *testing.T) {
	rec := RecognizerFunc(func(context.Context, string) ([]Recognition, error) {
		return nil, errors.New("sidecar down")
	})
	res := mustMask(t, New(WithRecognizer(rec), WithPatternOnlyFallback()), "call 9876543210")
	if res.MaskedText != "call [phone_number]" {
		t.Errorf("expected pattern-only result, got %q", res.MaskedText)
	}
}

func TestMaskCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Mask(ctx, "call 9876543210"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRuneOffsets(t *testing.T) {
	text := "Zoë works at Acme, mail zoe@x.io"
	rec := staticRecognizer(
		Recognition{Start: 0, End: 3, Category: "PERSON"},
		Recognition{Start: 13, End: 17, Category: "ORG"},
	)
	res := mustMask(t, New(WithRecognizer(rec)), text)

	want := []EntityRecord{
		{Position: [2]int{0, 3}, Classification: "full_name", Entity: "Zoë"},
		{Position: [2]int{13, 17}, Classification: "ORG", Entity: "Acme"},
		{Position: [2]int{24, 32}, Classification: "email", Entity: "zoe@x.io"},
	}
	if !reflect.DeepEqual(res.Entities, want) {
		t.Errorf("entities\n  want: %+v\n   got: %+v", want, res.Entities)
	}
	if res.MaskedText != "[full_name] works at [org], mail [email]" {
		t.Errorf("masked text: %q", res.MaskedText)
	}
	if got := Demask(res.MaskedText, res.Entities); got != text {
		t.Errorf("round trip: got %q", got)
	}
}

func TestRemaskLeavesPlaceholdersAlone(t *testing.T) {
	// An uppercase recognizer label on a placeholder would otherwise re-mask it.
	rec := RecognizerFunc(func(_ context.Context, text string) ([]Recognition, error) {
		i := strings.Index(text, "[email]")
		if i < 0 {
			return nil, nil
		}
		return []Recognition{{Start: i + 1, End: i + 6, Category: "ORG"}}, nil
	})
	e := New(WithRecognizer(rec))
	first := mustMask(t, e, "Email me at a@b.com or call 9876543210.")
	second := mustMask(t, e, first.MaskedText)

	if second.MaskedText != first.MaskedText {
		t.Errorf("re-masking changed text: %q -> %q", first.MaskedText, second.MaskedText)
	}
	if len(second.Entities) != 0 {
		t.Errorf("re-masking produced entities: %+v", second.Entities)
	}
}

func TestRemaskStillMasksNewPII(t *testing.T) {
	res := mustMask(t, New(), "[email] and 9876543210")
	if res.MaskedText != "[email] and [phone_number]" || len(res.Entities) != 1 {
		t.Errorf("got %+v", res)
	}
}
