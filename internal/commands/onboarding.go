package commands

import (
	"hash/fnv"
	"sync"
)

// Step is where a user currently is in the onboarding dialogue.
type Step int

const (
	StepNone Step = iota
	StepAwaitingName
	StepAwaitingEmail
	StepCompleted
)

// Profile is the data collected during onboarding.
type Profile struct {
	Step  Step
	Name  string
	Email string
}

const onboardingShards = 16

type onboardingShard struct {
	mu       sync.Mutex
	profiles map[int64]*Profile
}

// Onboarding tracks per-user dialogue state in memory. State is striped
// across shards so concurrent update goroutines for different users
// never contend on one lock.
type Onboarding struct {
	shards [onboardingShards]onboardingShard
}

// NewOnboarding builds an empty onboarding store.
func NewOnboarding() *Onboarding {
	store := &Onboarding{}
	for i := range store.shards {
		store.shards[i].profiles = make(map[int64]*Profile)
	}
	return store
}

func (o *Onboarding) shard(userID int64) *onboardingShard {
	h := fnv.New32a()
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(userID >> (8 * i))
	}
	h.Write(buf[:])
	return &o.shards[h.Sum32()%onboardingShards]
}

// Begin seeds a fresh dialogue for a newly registered user.
func (o *Onboarding) Begin(userID int64) {
	s := o.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[userID] = &Profile{Step: StepAwaitingName}
}

// Get returns a copy of the user's profile and whether one exists.
func (o *Onboarding) Get(userID int64) (Profile, bool) {
	s := o.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return Profile{}, false
	}
	return *p, true
}

// SetName records the user's name and moves the dialogue to the email
// step. It is a no-op unless the user is at the name step.
func (o *Onboarding) SetName(userID int64, name string) bool {
	s := o.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok || p.Step != StepAwaitingName {
		return false
	}
	p.Name = name
	p.Step = StepAwaitingEmail
	return true
}

// SetEmail records the user's email and completes the dialogue. It is
// a no-op unless the user is at the email step.
func (o *Onboarding) SetEmail(userID int64, email string) bool {
	s := o.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok || p.Step != StepAwaitingEmail {
		return false
	}
	p.Email = email
	p.Step = StepCompleted
	return true
}
