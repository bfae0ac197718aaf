// Package mapping turns a flat source frame into per-device pixel buffers.
//
// A [Mapping] copies a contiguous run of source pixels to a contiguous run of
// target pixels, optionally placed back-to-front on the target side. The
// mappings of one device are validated into a [Table]: non-empty, sorted by
// target start, with pairwise disjoint target ranges.
//
// # Usage
//
//	table, err := mapping.NewTable([]mapping.Mapping{
//	    {SourceStart: 0, TargetStart: 0, Length: 3},
//	    {SourceStart: 10, TargetStart: 3, Length: 2, Reverse: true},
//	})
//	if err != nil {
//	    return err
//	}
//	pixels, err := mapping.Remap(frame, table, 5)
//
// Pixels are RGB triplets; channel order inside a triplet is copied as-is.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package mapping
