// Package util provides helpers shared by the db.TimelineDB engines.
//
// The package contains:
//   - statistics: distribution metrics and a SizeHistogram for timeline lengths, used by GetInfo
//   - functions: the seeded FNV-1a hash behind ShardIndex and NodeID, GenerateSeed
package util
