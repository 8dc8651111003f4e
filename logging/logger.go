package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Environment variable name for controlling statistics visibility
const ENV_DEV_MODE = "DEV_MODE"

// Statistics represents the collected request statistics
type Statistics struct {
	UniqueVisitors     map[string]time.Time `json:"uniqueVisitors"`     // IP -> Last Visit Time
	ComparisonRequests int                  `json:"comparisonRequests"` // Total number of comparison requests
	ErrorCount         int                  `json:"errorCount"`         // Number of errors
	PopularSlugs       map[string]int       `json:"popularSlugs"`       // Slug -> Count
	AverageLoadTime    float64              `json:"averageLoadTime"`    // Average load time in milliseconds
	TotalLoadTime      float64              `json:"-"`                  // Used to calculate average
	RequestCount       int                  `json:"-"`                  // Used to calculate average
	LastPersisted      time.Time            `json:"lastPersisted"`      // Last time stats were saved
	mutex              sync.RWMutex         `json:"-"`
}

var (
	stats *Statistics
	once  sync.Once
)

// Initialize creates or loads the statistics
func Initialize() *Statistics {
	once.Do(func() {
		stats = &Statistics{
			UniqueVisitors: make(map[string]time.Time),
			PopularSlugs:   make(map[string]int),
			LastPersisted:  time.Now(),
		}

		// Try to load existing statistics
		if err := stats.Load(); err != nil {
			fmt.Printf("Could not load existing statistics: %v\n", err)
		}
	})
	return stats
}

// TrackVisitor records a unique visitor
func (s *Statistics) TrackVisitor(ip string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.UniqueVisitors[ip] = time.Now()
}

// TrackComparison records a comparison request for a topic slug
func (s *Statistics) TrackComparison(slug string, loadTime float64, hasError bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.ComparisonRequests++

	if slug != "" {
		s.PopularSlugs[slug]++
	}

	if hasError {
		s.ErrorCount++
	}

	// Update average load time
	s.TotalLoadTime += loadTime
	s.RequestCount++
	s.AverageLoadTime = s.TotalLoadTime / float64(s.RequestCount)
}

// GetUniqueVisitorsCount returns the number of unique visitors in the last 24 hours
func (s *Statistics) GetUniqueVisitorsCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	count := 0
	cutoff := time.Now().Add(-24 * time.Hour)

	for _, lastVisit := range s.UniqueVisitors {
		if lastVisit.After(cutoff) {
			count++
		}
	}

	return count
}

// GetPopularSlugs returns the top N most compared slugs
func (s *Statistics) GetPopularSlugs(n int) map[string]int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	result := make(map[string]int)
	count := 0

	// Simple implementation - for production, use a heap or sorted data structure
	for slug, freq := range s.PopularSlugs {
		if count < n {
			result[slug] = freq
			count++
		}
	}

	return result
}

// GetErrorRate returns the error rate as a percentage
func (s *Statistics) GetErrorRate() float64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.ComparisonRequests == 0 {
		return 0
	}

	return (float64(s.ErrorCount) / float64(s.ComparisonRequests)) * 100
}

// Save persists the statistics to a file
func (s *Statistics) Save() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.LastPersisted = time.Now()

	file, err := os.Create("statistics.json")
	if err != nil {
		return fmt.Errorf("could not create statistics file: %v", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	if err := encoder.Encode(s); err != nil {
		return fmt.Errorf("could not encode statistics: %v", err)
	}

	return nil
}

// Load reads the statistics from a file
func (s *Statistics) Load() error {
	file, err := os.Open("statistics.json")
	if err != nil {
		if os.IsNotExist(err) {
			return nil // Not an error if file doesn't exist yet
		}
		return fmt.Errorf("could not open statistics file: %v", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(s); err != nil {
		return fmt.Errorf("could not decode statistics: %v", err)
	}

	return nil
}

// GetStatistics returns a copy of the current statistics, but only in development mode
func (s *Statistics) GetStatistics() map[string]interface{} {
	s.mutex.RLock()
	visitors := 0
	cutoff := time.Now().Add(-24 * time.Hour)
	for _, lastVisit := range s.UniqueVisitors {
		if lastVisit.After(cutoff) {
			visitors++
		}
	}
	total := s.ComparisonRequests
	errRate := 0.0
	if total > 0 {
		errRate = (float64(s.ErrorCount) / float64(total)) * 100
	}
	avgLoad := s.AverageLoadTime
	s.mutex.RUnlock()

	result := map[string]interface{}{
		"uniqueVisitors24h": visitors,
		"totalRequests":     total,
		"errorRate":         errRate,
		"averageLoadTime":   avgLoad,
	}

	// In development mode, include the per-slug breakdown as well
	if os.Getenv(ENV_DEV_MODE) == "true" {
		result["popularSlugs"] = s.GetPopularSlugs(5)
	}

	return result
}
