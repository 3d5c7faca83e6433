package reputation

import (
	"sort"
	"sync"
	"time"
)

// SuspiciousRecord tracks denied access decisions for a single IP
type SuspiciousRecord struct {
	IPAddress string    `json:"ip_address"`
	Count     int       `json:"count"`
	LastSeen  time.Time `json:"last_seen"`
}

// Store maintains IP whitelist/blacklist sets and suspicious-IP counters.
// All methods are safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	whitelist  map[string]struct{}
	blacklist  map[string]struct{}
	suspicious map[string]*SuspiciousRecord
	maxAge     time.Duration
}

// NewStore creates an empty reputation store. Suspicious records older than
// maxAge become eligible for cleanup.
func NewStore(maxAge time.Duration) *Store {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}

	return &Store{
		whitelist:  make(map[string]struct{}),
		blacklist:  make(map[string]struct{}),
		suspicious: make(map[string]*SuspiciousRecord),
		maxAge:     maxAge,
	}
}

// AddToBlacklist adds an IP to the blacklist
func (s *Store) AddToBlacklist(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklist[ip] = struct{}{}
}

// RemoveFromBlacklist removes an IP from the blacklist
func (s *Store) RemoveFromBlacklist(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.blacklist[ip]
	delete(s.blacklist, ip)
	return exists
}

// AddToWhitelist adds an IP to the whitelist
func (s *Store) AddToWhitelist(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.whitelist[ip] = struct{}{}
}

// RemoveFromWhitelist removes an IP from the whitelist
func (s *Store) RemoveFromWhitelist(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.whitelist[ip]
	delete(s.whitelist, ip)
	return exists
}

// IsBlacklisted reports whether an IP is on the blacklist
func (s *Store) IsBlacklisted(ip string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.blacklist[ip]
	return exists
}

// IsWhitelisted reports whether an IP is on the whitelist
func (s *Store) IsWhitelisted(ip string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.whitelist[ip]
	return exists
}

// MarkSuspicious increments the denied-decision counter for an IP
func (s *Store) MarkSuspicious(ip string, now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.suspicious[ip]
	if !exists {
		record = &SuspiciousRecord{IPAddress: ip}
		s.suspicious[ip] = record
	}

	record.Count++
	record.LastSeen = now
}

// SuspiciousCount returns the current denied-decision count for an IP
func (s *Store) SuspiciousCount(ip string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if record, exists := s.suspicious[ip]; exists {
		return record.Count
	}
	return 0
}

// SuspiciousRecords returns all suspicious records sorted by count descending
func (s *Store) SuspiciousRecords() []SuspiciousRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]SuspiciousRecord, 0, len(s.suspicious))
	for _, record := range s.suspicious {
		records = append(records, *record)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Count != records[j].Count {
			return records[i].Count > records[j].Count
		}
		return records[i].IPAddress < records[j].IPAddress
	})

	return records
}

// CleanupSuspicious removes suspicious records not seen within the max age.
// Returns the number of records removed.
func (s *Store) CleanupSuspicious(now time.Time) int {
	if now.IsZero() {
		now = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for ip, record := range s.suspicious {
		if now.Sub(record.LastSeen) > s.maxAge {
			delete(s.suspicious, ip)
			removed++
		}
	}

	return removed
}

// Counts returns the sizes of the whitelist, blacklist and suspicious map
func (s *Store) Counts() (whitelisted, blacklisted, suspicious int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.whitelist), len(s.blacklist), len(s.suspicious)
}
