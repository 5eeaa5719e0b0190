package pricing

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var lineNamespace = uuid.MustParse("6f1c7d2e-3b4a-5c8d-9e0f-a1b2c3d4e5f6")

// NewLineID returns a random identifier for a line created by an operator.
func NewLineID() LineID {
	return LineID(uuid.NewString())
}

// deriveLineID names a line created by the pipeline after the grouping it
// holds, so rebuilding an unchanged ticket yields the same identifiers.
func deriveLineID(parts ...string) LineID {
	return LineID(uuid.NewSHA1(lineNamespace, []byte(strings.Join(parts, "/"))).String())
}

type idAllocator struct {
	used map[LineID]struct{}
}

func newIDAllocator(lines []LineItem) *idAllocator {
	a := &idAllocator{used: make(map[LineID]struct{}, len(lines))}
	for _, l := range lines {
		a.used[l.ID] = struct{}{}
	}
	return a
}

func (a *idAllocator) derive(parts ...string) LineID {
	id := deriveLineID(parts...)
	for n := 2; ; n++ {
		if _, taken := a.used[id]; !taken {
			break
		}
		id = deriveLineID(append(parts, strconv.Itoa(n))...)
	}
	a.used[id] = struct{}{}
	return id
}
