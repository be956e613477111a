// Network file loading: a flat little-endian dump of every weight/bias
// array in declaration order, no header beyond a magic/version pair.
// Grounded on sfnnue/nnue_common.go's ReadLittleEndian[T] generic reader
// idiom and load.rs conventions in the reference engine, which also load
// architecture parameters as one contiguous binary blob.
package network

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const (
	policyMagic  uint32 = 0x504f4c31 // "POL1"
	valueMagic   uint32 = 0x56414c31 // "VAL1"
)

// LoadPolicy reads a PolicyNetwork from path. A missing file or a magic/
// size mismatch is fatal at startup, per spec.md §7's error policy for
// network files.
func LoadPolicy(path string) (*PolicyNetwork, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("network: open policy file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if err := checkMagic(r, policyMagic); err != nil {
		return nil, fmt.Errorf("network: policy file %s: %w", path, err)
	}

	net := &PolicyNetwork{}
	for side := range net.Subnets {
		for i := range net.Subnets[side] {
			if err := readSubnet(r, &net.Subnets[side][i]); err != nil {
				return nil, fmt.Errorf("network: policy file %s: %w", path, err)
			}
		}
	}
	if err := readSlice(r, net.HCE[:]); err != nil {
		return nil, fmt.Errorf("network: policy file %s: %w", path, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &net.HCEBias); err != nil {
		return nil, fmt.Errorf("network: policy file %s: %w", path, err)
	}
	return net, nil
}

func readSubnet(r io.Reader, s *subNet) error {
	for i := range s.ftWeights {
		if err := readSlice(r, s.ftWeights[i][:]); err != nil {
			return err
		}
	}
	if err := readSlice(r, s.ftBias[:]); err != nil {
		return err
	}
	for i := range s.l2Weights {
		if err := readSlice(r, s.l2Weights[i][:]); err != nil {
			return err
		}
	}
	return readSlice(r, s.l2Bias[:])
}

// LoadValue reads a ValueNetwork from path.
func LoadValue(path string) (*ValueNetwork, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("network: open value file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	if err := checkMagic(r, valueMagic); err != nil {
		return nil, fmt.Errorf("network: value file %s: %w", path, err)
	}

	net := &ValueNetwork{}
	for i := range net.FeatureWeights {
		if err := readSlice(r, net.FeatureWeights[i][:]); err != nil {
			return nil, fmt.Errorf("network: value file %s: %w", path, err)
		}
	}
	if err := readSlice(r, net.FeatureBias[:]); err != nil {
		return nil, fmt.Errorf("network: value file %s: %w", path, err)
	}
	for i := range net.Proj {
		if err := readSlice(r, net.Proj[i][:]); err != nil {
			return nil, fmt.Errorf("network: value file %s: %w", path, err)
		}
	}
	if err := readSlice(r, net.ProjBias[:]); err != nil {
		return nil, fmt.Errorf("network: value file %s: %w", path, err)
	}
	for l := range net.Dense {
		for i := range net.Dense[l] {
			if err := readSlice(r, net.Dense[l][i][:]); err != nil {
				return nil, fmt.Errorf("network: value file %s: %w", path, err)
			}
		}
		if err := readSlice(r, net.DenseBias[l][:]); err != nil {
			return nil, fmt.Errorf("network: value file %s: %w", path, err)
		}
	}
	if err := readSlice(r, net.OutWeights[:]); err != nil {
		return nil, fmt.Errorf("network: value file %s: %w", path, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &net.OutBias); err != nil {
		return nil, fmt.Errorf("network: value file %s: %w", path, err)
	}
	return net, nil
}

func checkMagic(r io.Reader, want uint32) error {
	var got uint32
	if err := binary.Read(r, binary.LittleEndian, &got); err != nil {
		return fmt.Errorf("read magic: %w", err)
	}
	if got != want {
		return fmt.Errorf("bad magic %08x, want %08x", got, want)
	}
	return nil
}

func readSlice[T any](r io.Reader, dst []T) error {
	return binary.Read(r, binary.LittleEndian, dst)
}
