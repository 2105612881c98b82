package resource

import (
	"fmt"
	"strings"
)

// Kind is one of the resource kinds tagsweep understands.
// The set is closed: every value is declared below and listed by Kinds.
type Kind int

const (
	// KindVM is a compute instance (EC2).
	KindVM Kind = iota
	// KindLoadBalancer is an application/network load balancer (ELBv2).
	KindLoadBalancer
	// KindManagedDB is a managed database instance (RDS).
	KindManagedDB
	// KindCacheCluster is a cache cluster (ElastiCache).
	KindCacheCluster
	// KindQueue is a message queue (SQS). Queues are recorded by name prefix.
	KindQueue
)

var kindSpecs = [...]struct {
	name         string
	recordType   string
	delimiter    string
	skipUntagged bool
}{
	KindVM:           {"vm", "vm", "instance/", false},
	KindLoadBalancer: {"load-balancer", "load-balancer", "loadbalancer/", false},
	KindManagedDB:    {"managed-db", "managed-db", ":db:", false},
	KindCacheCluster: {"cache-cluster", "cache-cluster", ":cluster:", false},
	KindQueue:        {"queue", "queue-prefix", "--", true},
}

// Kinds returns every kind in sweep order.
func Kinds() []Kind {
	return []Kind{KindVM, KindLoadBalancer, KindManagedDB, KindCacheCluster, KindQueue}
}

// Valid reports whether k is a declared kind.
func (k Kind) Valid() bool {
	return k >= KindVM && k <= KindQueue
}

// String returns the kind name used in logs and flags.
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindSpecs[k].name
}

// RecordType returns the resource_type value persisted for this kind.
func (k Kind) RecordType() string {
	if !k.Valid() {
		return ""
	}
	return kindSpecs[k].recordType
}

// Delimiter returns the separator ExtractID cuts on.
func (k Kind) Delimiter() string {
	if !k.Valid() {
		return ""
	}
	return kindSpecs[k].delimiter
}

// SkipUntagged reports whether a resource of this kind without an ownership
// tag is dropped instead of being attributed to UnknownOwner.
func (k Kind) SkipUntagged() bool {
	return k.Valid() && kindSpecs[k].skipUntagged
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind resolves a kind name. Record types ("queue-prefix") are accepted too.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds() {
		if s == k.String() || s == k.RecordType() {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown resource kind %q", s)
}

// ParseKinds parses a comma-separated kind list and returns it in sweep order
// without duplicates. An empty input selects every kind.
func ParseKinds(s string) ([]Kind, error) {
	if strings.TrimSpace(s) == "" {
		return Kinds(), nil
	}

	selected := make(map[Kind]bool)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		k, err := ParseKind(part)
		if err != nil {
			return nil, err
		}
		selected[k] = true
	}

	kinds := make([]Kind, 0, len(selected))
	for _, k := range Kinds() {
		if selected[k] {
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}
