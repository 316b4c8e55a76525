package sched

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownTask     = errors.New("unknown task")
	ErrUnknownStrategy = errors.New("unknown strategy")
	ErrInvalidClass    = errors.New("invalid class")
	ErrInvalidPolicy   = errors.New("invalid policy")
	ErrInvalidTask     = errors.New("invalid task")
)

// Policy is the scheduling policy of a task.
type Policy int

const (
	PolicyFIFO Policy = iota
	PolicyRoundRobin
	PolicyTimeSharing
	PolicyIdle
	PolicyDeadline
)

func (p Policy) String() string {
	switch p {
	case PolicyFIFO:
		return "FIFO"
	case PolicyRoundRobin:
		return "RoundRobin"
	case PolicyTimeSharing:
		return "TimeSharing"
	case PolicyIdle:
		return "Idle"
	case PolicyDeadline:
		return "Deadline"
	default:
		return "Unknown"
	}
}

// ParsePolicy accepts the short shell tokens (fifo, rr, ts, idle, deadline)
// as well as the full names.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "fifo":
		return PolicyFIFO, nil
	case "rr", "roundrobin", "round_robin":
		return PolicyRoundRobin, nil
	case "ts", "timesharing", "time_sharing":
		return PolicyTimeSharing, nil
	case "idle":
		return PolicyIdle, nil
	case "deadline":
		return PolicyDeadline, nil
	}
	return 0, fmt.Errorf("%w %q: want one of fifo, rr, ts, idle, deadline", ErrInvalidPolicy, s)
}

// Class is the coarse priority tier of a task. The global queue strategy
// accepts Foreground, Background, Daemon and Empty; the strict strategy
// accepts Foreground, Visible, Service, Background and Cached.
type Class int

const (
	ClassForeground Class = iota
	ClassVisible
	ClassService
	ClassBackground
	ClassCached
	ClassDaemon
	ClassEmpty
)

// StrictClasses lists the strict strategy classes in rank order.
var StrictClasses = []Class{ClassForeground, ClassVisible, ClassService, ClassBackground, ClassCached}

func (c Class) String() string {
	switch c {
	case ClassForeground:
		return "Foreground"
	case ClassVisible:
		return "Visible"
	case ClassService:
		return "Service"
	case ClassBackground:
		return "Background"
	case ClassCached:
		return "Cached"
	case ClassDaemon:
		return "Daemon"
	case ClassEmpty:
		return "Empty"
	default:
		return "Unknown"
	}
}

// Rank is the strict ordering position of a class; lower always wins.
// Only meaningful for the five strict classes.
func (c Class) Rank() int { return int(c) }

// Kind selects a scheduling strategy.
type Kind int

const (
	KindPriorityQueue Kind = iota
	KindStrictClass
)

// Kinds lists every strategy kind an engine hosts.
var Kinds = []Kind{KindPriorityQueue, KindStrictClass}

func (k Kind) String() string {
	switch k {
	case KindPriorityQueue:
		return "pq"
	case KindStrictClass:
		return "strict"
	default:
		return "unknown"
	}
}

// ParseKind accepts pq/linux and strict/android.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "pq", "linux", "priority", "priorityqueue":
		return KindPriorityQueue, nil
	case "strict", "android", "strictclass":
		return KindStrictClass, nil
	}
	return 0, fmt.Errorf("%w %q: want pq or strict", ErrUnknownStrategy, s)
}

// Accepts reports whether tasks of class c may be scheduled by this kind.
func (k Kind) Accepts(c Class) bool {
	switch k {
	case KindPriorityQueue:
		return c == ClassForeground || c == ClassBackground || c == ClassDaemon || c == ClassEmpty
	case KindStrictClass:
		return c >= ClassForeground && c <= ClassCached
	}
	return false
}

// ParseClass resolves a class token in the vocabulary of the given kind.
func (k Kind) ParseClass(s string) (Class, error) {
	s = strings.ToLower(s)
	switch k {
	case KindPriorityQueue:
		switch s {
		case "fg", "foreground":
			return ClassForeground, nil
		case "bg", "background":
			return ClassBackground, nil
		case "daemon":
			return ClassDaemon, nil
		case "empty":
			return ClassEmpty, nil
		}
		return 0, fmt.Errorf("%w %q for pq: want one of fg, bg, daemon, empty", ErrInvalidClass, s)
	case KindStrictClass:
		switch s {
		case "fg", "foreground":
			return ClassForeground, nil
		case "vis", "visible":
			return ClassVisible, nil
		case "svc", "service":
			return ClassService, nil
		case "bg", "background":
			return ClassBackground, nil
		case "cache", "cached":
			return ClassCached, nil
		}
		return 0, fmt.Errorf("%w %q for strict: want one of fg, vis, svc, bg, cache", ErrInvalidClass, s)
	}
	return 0, fmt.Errorf("%w %d", ErrUnknownStrategy, k)
}
