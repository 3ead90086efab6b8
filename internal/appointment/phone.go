package appointment

import (
	"fmt"
	"math/rand"
	"sync"
)

const (
	virtualPhonePrefix   = "+1 (416) 555-"
	maxAllocationRetries = 8
)

// PhoneAllocator hands out cosmetic virtual numbers: a fixed Toronto prefix
// plus four random digits in 1000-9999. The numbers are not provisioned anywhere.
type PhoneAllocator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewPhoneAllocator(src rand.Source) *PhoneAllocator {
	return &PhoneAllocator{rng: rand.New(src)}
}

// Allocate draws a number, retrying a few times while inUse reports a clash.
// With only 9000 numbers a clash is eventually unavoidable, so the last draw
// is returned even if it is taken.
func (p *PhoneAllocator) Allocate(inUse func(string) bool) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var number string
	for i := 0; i < maxAllocationRetries; i++ {
		number = fmt.Sprintf("%s%04d", virtualPhonePrefix, 1000+p.rng.Intn(9000))
		if inUse == nil || !inUse(number) {
			return number
		}
	}
	return number
}
