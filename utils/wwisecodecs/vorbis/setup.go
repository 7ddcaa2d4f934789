package vorbis

import "fmt"

// setupInfo is what the audio packet rewriter needs from the setup header.
type setupInfo struct {
	modeBlockFlags []bool
	modeBits       int
}

// rebuildSetup reads a Wwise setup packet (after its header bytes) from c.r
// and writes the standard Vorbis setup body to c.w.
func rebuildSetup(c *bitCopier, layout SetupLayout, lib *Library, channels uint32) (setupInfo, error) {
	var info setupInfo
	std := layout == SetupFull

	codebookCount := c.copy(8) + 1
	if c.err != nil {
		return info, c.err
	}
	if layout == SetupPacked && lib == nil {
		return info, fmt.Errorf("%w: no codebook library loaded", ErrCodebook)
	}
	for i := uint32(0); i < codebookCount; i++ {
		if err := rebuildSetupCodebook(c, layout, lib, i); err != nil {
			return info, err
		}
	}

	if std {
		transforms := c.copy(6) + 1
		for i := uint32(0); i < transforms && c.err == nil; i++ {
			if v := c.copy(16); c.err == nil && v != 0 {
				return info, fmt.Errorf("%w: time domain transform %d", ErrInvalidStream, v)
			}
		}
	} else {
		// one placeholder entry
		c.write(6, 0)
		c.write(16, 0)
	}

	floorCount, err := rebuildFloors(c, std, codebookCount)
	if err != nil {
		return info, err
	}
	residueCount, err := rebuildResidues(c, std, codebookCount)
	if err != nil {
		return info, err
	}
	mappingCount, err := rebuildMappings(c, std, channels, floorCount, residueCount)
	if err != nil {
		return info, err
	}

	modeCountLess1 := c.copy(6)
	info.modeBits = ilog(modeCountLess1)
	info.modeBlockFlags = make([]bool, modeCountLess1+1)
	for i := range info.modeBlockFlags {
		info.modeBlockFlags[i] = c.copy(1) != 0
		c.field(std, 16, 0) // window type
		c.field(std, 16, 0) // transform type
		mapping := c.copy(8)
		if c.err == nil && mapping >= mappingCount {
			return info, fmt.Errorf("%w: mode mapping %d out of range %d", ErrInvalidStream, mapping, mappingCount)
		}
	}
	if framing := c.field(std, 1, 1); c.err == nil && framing != 1 {
		return info, fmt.Errorf("%w: missing setup framing bit", ErrInvalidStream)
	}
	return info, c.err
}

func rebuildSetupCodebook(c *bitCopier, layout SetupLayout, lib *Library, i uint32) error {
	switch layout {
	case SetupPacked:
		id := c.read(10)
		if c.err != nil {
			return c.err
		}
		return lib.Rebuild(int(id), c.w)
	case SetupInline:
		if err := RebuildCodebook(c.r, c.w); err != nil {
			return fmt.Errorf("failed to rebuild inline codebook %d: %w", i, err)
		}
	case SetupFull:
		if err := CopyCodebook(c.r, c.w); err != nil {
			return fmt.Errorf("failed to copy codebook %d: %w", i, err)
		}
	default:
		return fmt.Errorf("%w: setup layout %v", ErrInvalidStream, layout)
	}
	return nil
}

func rebuildFloors(c *bitCopier, std bool, codebookCount uint32) (uint32, error) {
	floorCount := c.copy(6) + 1
	for i := uint32(0); i < floorCount && c.err == nil; i++ {
		if floorType := c.field(std, 16, 1); c.err == nil && floorType != 1 {
			return 0, fmt.Errorf("%w: floor type %d", ErrInvalidStream, floorType)
		}

		partitions := c.copy(5)
		partitionClass := make([]uint32, partitions)
		maxClass := -1
		for j := range partitionClass {
			partitionClass[j] = c.copy(4)
			maxClass = max(maxClass, int(partitionClass[j]))
		}

		classDimensions := make([]uint32, maxClass+1)
		for j := range classDimensions {
			classDimensions[j] = c.copy(3) + 1
			subclasses := c.copy(2)
			if subclasses != 0 {
				masterbook := c.copy(8)
				if c.err == nil && masterbook >= codebookCount {
					return 0, fmt.Errorf("%w: floor masterbook %d out of range %d", ErrInvalidStream, masterbook, codebookCount)
				}
			}
			for k := 0; k < 1<<subclasses; k++ {
				bookPlus1 := c.copy(8)
				if c.err == nil && bookPlus1 != 0 && bookPlus1-1 >= codebookCount {
					return 0, fmt.Errorf("%w: floor subclass book %d out of range %d", ErrInvalidStream, bookPlus1-1, codebookCount)
				}
			}
		}

		c.copy(2) // multiplier
		rangeBits := int(c.copy(4))
		for _, class := range partitionClass {
			for k := uint32(0); k < classDimensions[class] && c.err == nil; k++ {
				c.copy(rangeBits)
			}
		}
	}
	return floorCount, c.err
}

func rebuildResidues(c *bitCopier, std bool, codebookCount uint32) (uint32, error) {
	residueCount := c.copy(6) + 1
	for i := uint32(0); i < residueCount && c.err == nil; i++ {
		var residueType uint32
		if std {
			residueType = c.copy(16)
		} else {
			residueType = c.widen(2, 16)
		}
		if c.err == nil && residueType > 2 {
			return 0, fmt.Errorf("%w: residue type %d", ErrInvalidStream, residueType)
		}
		c.copy(24) // begin
		c.copy(24) // end
		c.copy(24) // partition size - 1
		classifications := c.copy(6) + 1
		classbook := c.copy(8)
		if c.err == nil && classbook >= codebookCount {
			return 0, fmt.Errorf("%w: residue classbook %d out of range %d", ErrInvalidStream, classbook, codebookCount)
		}

		cascade := make([]uint32, classifications)
		for j := range cascade {
			low := c.copy(3)
			var high uint32
			if c.copy(1) != 0 {
				high = c.copy(5)
			}
			cascade[j] = high<<3 | low
		}
		for _, bitsSet := range cascade {
			for k := 0; k < 8; k++ {
				if bitsSet&(1<<k) == 0 {
					continue
				}
				book := c.copy(8)
				if c.err == nil && book >= codebookCount {
					return 0, fmt.Errorf("%w: residue book %d out of range %d", ErrInvalidStream, book, codebookCount)
				}
			}
		}
	}
	return residueCount, c.err
}

func rebuildMappings(c *bitCopier, std bool, channels, floorCount, residueCount uint32) (uint32, error) {
	mappingCount := c.copy(6) + 1
	for i := uint32(0); i < mappingCount && c.err == nil; i++ {
		if mappingType := c.field(std, 16, 0); c.err == nil && mappingType != 0 {
			return 0, fmt.Errorf("%w: mapping type %d", ErrInvalidStream, mappingType)
		}

		submaps := uint32(1)
		if c.copy(1) != 0 {
			submaps = c.copy(4) + 1
		}

		if c.copy(1) != 0 {
			steps := c.copy(8) + 1
			couplingBits := ilog(channels - 1)
			for j := uint32(0); j < steps && c.err == nil; j++ {
				magnitude := c.copy(couplingBits)
				angle := c.copy(couplingBits)
				if c.err == nil && (angle == magnitude || magnitude >= channels || angle >= channels) {
					return 0, fmt.Errorf("%w: invalid channel coupling %d/%d", ErrInvalidStream, magnitude, angle)
				}
			}
		}

		reserved := c.copy(2)
		if c.err == nil && reserved != 0 {
			return 0, fmt.Errorf("%w: mapping reserved field %d", ErrInvalidStream, reserved)
		}

		if submaps > 1 {
			for ch := uint32(0); ch < channels; ch++ {
				mux := c.copy(4)
				if c.err == nil && mux >= submaps {
					return 0, fmt.Errorf("%w: mapping mux %d out of range %d", ErrInvalidStream, mux, submaps)
				}
			}
		}

		for j := uint32(0); j < submaps; j++ {
			c.copy(8) // time config
			floor := c.copy(8)
			if c.err == nil && floor >= floorCount {
				return 0, fmt.Errorf("%w: mapping floor %d out of range %d", ErrInvalidStream, floor, floorCount)
			}
			residue := c.copy(8)
			if c.err == nil && residue >= residueCount {
				return 0, fmt.Errorf("%w: mapping residue %d out of range %d", ErrInvalidStream, residue, residueCount)
			}
		}
	}
	return mappingCount, c.err
}
