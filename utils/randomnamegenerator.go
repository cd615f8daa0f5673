package utils

import (
	"math/rand"

	"github.com/Pallinder/go-randomdata"
)

// RandomNameGenerator produces deterministic unique names
// for entities created without one
type RandomNameGenerator map[string]struct{}

func (rng *RandomNameGenerator) init() {
	if *rng == nil {
		*rng = make(map[string]struct{})
		randomdata.CustomRand(rand.New(rand.NewSource(0)))
	}
}

// Reserve marks already used names
func (rng *RandomNameGenerator) Reserve(names ...string) {
	rng.init()
	for _, name := range names {
		(*rng)[name] = struct{}{}
	}
}

func (rng *RandomNameGenerator) RandomName() string {
	rng.init()
	for {
		name := randomdata.SillyName()
		// avoid duplicate names
		if _, exists := (*rng)[name]; !exists {
			(*rng)[name] = struct{}{}
			return name
		}
	}
}
