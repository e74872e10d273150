// Package directive extracts the bracketed instructions the model embeds in
// its replies ("[[ADD: 350]]", "[[BUTTONS: Yes, No]]", ...) and returns the
// text that is safe to show the user.
//
// The model is an untrusted text generator, so parsing never fails: a tag
// whose payload cannot be read is dropped from the text and treated as absent.
package directive

import (
	"regexp"
	"strconv"
	"strings"
)

type Kind string

const (
	KindAddCalories   Kind = "ADD"
	KindSetTarget     Kind = "TARGET"
	KindAddWater      Kind = "WATER"
	KindQuickReplies  Kind = "BUTTONS"
	KindGenerateImage Kind = "GENERATE_IMAGE"
)

// Directive is one of AddCalories, SetTarget, AddWater, QuickReplies or
// GenerateImage.
type Directive interface {
	Kind() Kind
}

type AddCalories struct{ Kcal int }

type SetTarget struct{ Kcal int }

type AddWater struct{ ML int }

type QuickReplies struct{ Options []string }

type GenerateImage struct{ Prompt string }

func (AddCalories) Kind() Kind   { return KindAddCalories }
func (SetTarget) Kind() Kind     { return KindSetTarget }
func (AddWater) Kind() Kind      { return KindAddWater }
func (QuickReplies) Kind() Kind  { return KindQuickReplies }
func (GenerateImage) Kind() Kind { return KindGenerateImage }

// Reply is a parsed model response.
type Reply struct {
	Text       string
	Directives []Directive
}

// payloads may wrap onto new lines
var (
	tagPattern    = regexp.MustCompile(`(?is)\[\[\s*(ADD|TARGET|WATER|BUTTONS|GENERATE_IMAGE)\s*:\s*(.*?)\s*\]\]`)
	digitsPattern = regexp.MustCompile(`^[0-9]+$`)
)

// Parse is pure: the same input always yields the same Reply.
func Parse(raw string) Reply {
	var reply Reply
	seen := make(map[Kind]bool)

	for _, m := range tagPattern.FindAllStringSubmatch(raw, -1) {
		kind := Kind(strings.ToUpper(m[1]))
		if seen[kind] {
			continue
		}
		d, ok := decode(kind, m[2])
		if !ok {
			continue
		}
		seen[kind] = true
		reply.Directives = append(reply.Directives, d)
	}

	reply.Text = strings.TrimSpace(tagPattern.ReplaceAllString(raw, ""))
	return reply
}

func decode(kind Kind, payload string) (Directive, bool) {
	payload = strings.TrimSpace(payload)
	switch kind {
	case KindAddCalories:
		n, ok := parseAmount(payload)
		return AddCalories{Kcal: n}, ok
	case KindSetTarget:
		n, ok := parseAmount(payload)
		return SetTarget{Kcal: n}, ok
	case KindAddWater:
		n, ok := parseAmount(payload)
		return AddWater{ML: n}, ok
	case KindQuickReplies:
		opts := splitOptions(payload)
		return QuickReplies{Options: opts}, len(opts) > 0
	case KindGenerateImage:
		return GenerateImage{Prompt: payload}, payload != ""
	}
	return nil, false
}

func parseAmount(s string) (int, bool) {
	if !digitsPattern.MatchString(s) {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func splitOptions(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (r Reply) find(kind Kind) Directive {
	for _, d := range r.Directives {
		if d.Kind() == kind {
			return d
		}
	}
	return nil
}

func (r Reply) CaloriesToAdd() (int, bool) {
	if d, ok := r.find(KindAddCalories).(AddCalories); ok {
		return d.Kcal, true
	}
	return 0, false
}

func (r Reply) NewTarget() (int, bool) {
	if d, ok := r.find(KindSetTarget).(SetTarget); ok {
		return d.Kcal, true
	}
	return 0, false
}

func (r Reply) WaterToAdd() (int, bool) {
	if d, ok := r.find(KindAddWater).(AddWater); ok {
		return d.ML, true
	}
	return 0, false
}

func (r Reply) Buttons() ([]string, bool) {
	if d, ok := r.find(KindQuickReplies).(QuickReplies); ok {
		return d.Options, true
	}
	return nil, false
}

func (r Reply) ImagePrompt() (string, bool) {
	if d, ok := r.find(KindGenerateImage).(GenerateImage); ok {
		return d.Prompt, true
	}
	return "", false
}
