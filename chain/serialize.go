// Copyright 2023 Signal Messenger, LLC
// SPDX-License-Identifier: AGPL-3.0-only

package chain

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

/*
 * Each frame is sent by first writing a varint length,
 * followed by the envelope encoding of the frame
 */

const maxFrameLength = 16 << 20

var ErrFrameTooLarge = errors.New("frame too large")

func writeFramed(w io.Writer, f Frame) error {
	bs := EncodeFrame(f)
	if len(bs) > maxFrameLength {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(bs))
	}
	var frameBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(frameBuf[:], uint64(len(bs)))
	if _, err := w.Write(frameBuf[:n]); err != nil {
		return err
	}
	_, err := w.Write(bs)
	return err
}

func readFramed(r *bufio.Reader) (Frame, error) {
	bs, err := readFramedRaw(r)
	if err != nil {
		return nil, err
	}
	return DecodeFrame(bs)
}

func readFramedRaw(r *bufio.Reader) ([]byte, error) {
	length, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if length > maxFrameLength {
		return nil, fmt.Errorf("%w: length %v (or corrupt)", ErrFrameTooLarge, length)
	}

	dst := make([]byte, length)
	if _, err = io.ReadFull(r, dst); err != nil {
		return nil, err
	}
	return dst, nil
}
