package quicwire

//
// Frame codec: builders
//
// Every frame implements the two-pass contract: Len returns exactly
// the number of bytes Append writes. Data-bearing frames gather their
// payload from a [Payload] chain, copying each chunk in order.
//

import "fmt"

// AckRangeLen returns the encoded size of one gap/range pair.
func AckRangeLen(gap, rnge uint64) int {
	return varintLen(gap) + varintLen(rnge)
}

// AppendAckRange appends one encoded gap/range pair to b. The caller
// accumulates pairs into the region it hands to [AckFrame.Ranges].
func AppendAckRange(b []byte, gap, rnge uint64) []byte {
	b = appendVarint(b, gap)
	b = appendVarint(b, rnge)
	return b
}

func (f *PaddingFrame) wireType() uint64 { return frameTypePadding }

// Len implements Frame.
func (f *PaddingFrame) Len() int { return f.Count }

// Append implements Frame.
func (f *PaddingFrame) Append(b []byte) ([]byte, error) {
	for i := 0; i < f.Count; i++ {
		b = append(b, frameTypePadding)
	}
	return b, nil
}

func (f *PingFrame) wireType() uint64 { return frameTypePing }

// Len implements Frame.
func (f *PingFrame) Len() int { return 1 }

// Append implements Frame.
func (f *PingFrame) Append(b []byte) ([]byte, error) {
	return appendVarint(b, frameTypePing), nil
}

func (f *AckFrame) wireType() uint64 {
	if f.ECN {
		return frameTypeAckECN
	}
	return frameTypeAck
}

// Len implements Frame.
func (f *AckFrame) Len() int {
	size := varintLen(f.wireType()) +
		varintLen(f.Largest) +
		varintLen(f.Delay) +
		varintLen(f.RangeCount) +
		varintLen(f.FirstRange) +
		f.Ranges.Size()
	if f.ECN {
		size += varintLen(f.ECT0) + varintLen(f.ECT1) + varintLen(f.CE)
	}
	return size
}

// Append implements Frame. The Ranges chunks must contain exactly
// RangeCount encoded gap/range pairs; the builder copies them as-is.
func (f *AckFrame) Append(b []byte) ([]byte, error) {
	b = appendVarint(b, f.wireType())
	b = appendVarint(b, f.Largest)
	b = appendVarint(b, f.Delay)
	b = appendVarint(b, f.RangeCount)
	b = appendVarint(b, f.FirstRange)
	b = f.Ranges.appendTo(b)
	if f.ECN {
		b = appendVarint(b, f.ECT0)
		b = appendVarint(b, f.ECT1)
		b = appendVarint(b, f.CE)
	}
	return b, nil
}

func (f *ResetStreamFrame) wireType() uint64 { return frameTypeResetStream }

// Len implements Frame.
func (f *ResetStreamFrame) Len() int {
	return varintLen(frameTypeResetStream) + varintLen(f.StreamID) +
		varintLen(f.ErrorCode) + varintLen(f.FinalSize)
}

// Append implements Frame.
func (f *ResetStreamFrame) Append(b []byte) ([]byte, error) {
	b = appendVarint(b, frameTypeResetStream)
	b = appendVarint(b, f.StreamID)
	b = appendVarint(b, f.ErrorCode)
	b = appendVarint(b, f.FinalSize)
	return b, nil
}

func (f *StopSendingFrame) wireType() uint64 { return frameTypeStopSending }

// Len implements Frame.
func (f *StopSendingFrame) Len() int {
	return varintLen(frameTypeStopSending) + varintLen(f.StreamID) +
		varintLen(f.ErrorCode)
}

// Append implements Frame.
func (f *StopSendingFrame) Append(b []byte) ([]byte, error) {
	b = appendVarint(b, frameTypeStopSending)
	b = appendVarint(b, f.StreamID)
	b = appendVarint(b, f.ErrorCode)
	return b, nil
}

func (f *CryptoFrame) wireType() uint64 { return frameTypeCrypto }

// Len implements Frame.
func (f *CryptoFrame) Len() int {
	length := f.Data.Size()
	return varintLen(frameTypeCrypto) + varintLen(f.Offset) +
		varintLen(uint64(length)) + length
}

// Append implements Frame.
func (f *CryptoFrame) Append(b []byte) ([]byte, error) {
	b = appendVarint(b, frameTypeCrypto)
	b = appendVarint(b, f.Offset)
	b = appendVarint(b, uint64(f.Data.Size()))
	b = f.Data.appendTo(b)
	return b, nil
}

func (f *NewTokenFrame) wireType() uint64 { return frameTypeNewToken }

// Len implements Frame.
func (f *NewTokenFrame) Len() int {
	length := f.Token.Size()
	return varintLen(frameTypeNewToken) + varintLen(uint64(length)) + length
}

// Append implements Frame.
func (f *NewTokenFrame) Append(b []byte) ([]byte, error) {
	b = appendVarint(b, frameTypeNewToken)
	b = appendVarint(b, uint64(f.Token.Size()))
	b = f.Token.appendTo(b)
	return b, nil
}

func (f *StreamFrame) wireType() uint64 {
	// generated frames always carry an explicit length
	frameType := uint64(frameTypeStreamBase | streamBitLen)
	if f.Offset > 0 {
		frameType |= streamBitOff
	}
	if f.Fin {
		frameType |= streamBitFin
	}
	return frameType
}

// Len implements Frame.
func (f *StreamFrame) Len() int {
	length := f.Data.Size()
	size := varintLen(f.wireType()) + varintLen(f.StreamID)
	if f.Offset > 0 {
		size += varintLen(f.Offset)
	}
	size += varintLen(uint64(length)) + length
	return size
}

// Append implements Frame.
func (f *StreamFrame) Append(b []byte) ([]byte, error) {
	b = appendVarint(b, f.wireType())
	b = appendVarint(b, f.StreamID)
	if f.Offset > 0 {
		b = appendVarint(b, f.Offset)
	}
	b = appendVarint(b, uint64(f.Data.Size()))
	b = f.Data.appendTo(b)
	return b, nil
}

func (f *MaxDataFrame) wireType() uint64 { return frameTypeMaxData }

// Len implements Frame.
func (f *MaxDataFrame) Len() int {
	return varintLen(frameTypeMaxData) + varintLen(f.MaxData)
}

// Append implements Frame.
func (f *MaxDataFrame) Append(b []byte) ([]byte, error) {
	b = appendVarint(b, frameTypeMaxData)
	b = appendVarint(b, f.MaxData)
	return b, nil
}

func (f *MaxStreamDataFrame) wireType() uint64 { return frameTypeMaxStreamData }

// Len implements Frame.
func (f *MaxStreamDataFrame) Len() int {
	return varintLen(frameTypeMaxStreamData) + varintLen(f.StreamID) +
		varintLen(f.Limit)
}

// Append implements Frame.
func (f *MaxStreamDataFrame) Append(b []byte) ([]byte, error) {
	b = appendVarint(b, frameTypeMaxStreamData)
	b = appendVarint(b, f.StreamID)
	b = appendVarint(b, f.Limit)
	return b, nil
}

func (f *MaxStreamsFrame) wireType() uint64 {
	if f.Bidi {
		return frameTypeMaxStreamsBidi
	}
	return frameTypeMaxStreamsUni
}

// Len implements Frame.
func (f *MaxStreamsFrame) Len() int {
	return varintLen(f.wireType()) + varintLen(f.Limit)
}

// Append implements Frame.
func (f *MaxStreamsFrame) Append(b []byte) ([]byte, error) {
	b = appendVarint(b, f.wireType())
	b = appendVarint(b, f.Limit)
	return b, nil
}

func (f *DataBlockedFrame) wireType() uint64 { return frameTypeDataBlocked }

// Len implements Frame.
func (f *DataBlockedFrame) Len() int {
	return varintLen(frameTypeDataBlocked) + varintLen(f.Limit)
}

// Append implements Frame.
func (f *DataBlockedFrame) Append(b []byte) ([]byte, error) {
	b = appendVarint(b, frameTypeDataBlocked)
	b = appendVarint(b, f.Limit)
	return b, nil
}

func (f *StreamDataBlockedFrame) wireType() uint64 { return frameTypeStreamDataBlocked }

// Len implements Frame.
func (f *StreamDataBlockedFrame) Len() int {
	return varintLen(frameTypeStreamDataBlocked) + varintLen(f.StreamID) +
		varintLen(f.Limit)
}

// Append implements Frame.
func (f *StreamDataBlockedFrame) Append(b []byte) ([]byte, error) {
	b = appendVarint(b, frameTypeStreamDataBlocked)
	b = appendVarint(b, f.StreamID)
	b = appendVarint(b, f.Limit)
	return b, nil
}

func (f *StreamsBlockedFrame) wireType() uint64 {
	if f.Bidi {
		return frameTypeStreamsBlockedBidi
	}
	return frameTypeStreamsBlockedUni
}

// Len implements Frame.
func (f *StreamsBlockedFrame) Len() int {
	return varintLen(f.wireType()) + varintLen(f.Limit)
}

// Append implements Frame.
func (f *StreamsBlockedFrame) Append(b []byte) ([]byte, error) {
	b = appendVarint(b, f.wireType())
	b = appendVarint(b, f.Limit)
	return b, nil
}

func (f *NewConnectionIDFrame) wireType() uint64 { return frameTypeNewConnectionID }

// Len implements Frame.
func (f *NewConnectionIDFrame) Len() int {
	return varintLen(frameTypeNewConnectionID) + varintLen(f.SequenceNumber) +
		varintLen(f.RetirePriorTo) + 1 + len(f.ConnID) + StatelessResetTokenLen
}

// Append implements Frame.
func (f *NewConnectionIDFrame) Append(b []byte) ([]byte, error) {
	if len(f.ConnID) < 1 || len(f.ConnID) > MaxConnIDLen {
		return nil, fmt.Errorf("%w: invalid connection ID length: %d", ErrParse, len(f.ConnID))
	}
	b = appendVarint(b, frameTypeNewConnectionID)
	b = appendVarint(b, f.SequenceNumber)
	b = appendVarint(b, f.RetirePriorTo)
	b = append(b, byte(len(f.ConnID)))
	b = append(b, f.ConnID...)
	b = append(b, f.StatelessResetToken[:]...)
	return b, nil
}

func (f *RetireConnectionIDFrame) wireType() uint64 { return frameTypeRetireConnectionID }

// Len implements Frame.
func (f *RetireConnectionIDFrame) Len() int {
	return varintLen(frameTypeRetireConnectionID) + varintLen(f.SequenceNumber)
}

// Append implements Frame.
func (f *RetireConnectionIDFrame) Append(b []byte) ([]byte, error) {
	b = appendVarint(b, frameTypeRetireConnectionID)
	b = appendVarint(b, f.SequenceNumber)
	return b, nil
}

func (f *PathChallengeFrame) wireType() uint64 { return frameTypePathChallenge }

// Len implements Frame.
func (f *PathChallengeFrame) Len() int {
	return varintLen(frameTypePathChallenge) + len(f.Data)
}

// Append implements Frame.
func (f *PathChallengeFrame) Append(b []byte) ([]byte, error) {
	b = appendVarint(b, frameTypePathChallenge)
	b = append(b, f.Data[:]...)
	return b, nil
}

func (f *PathResponseFrame) wireType() uint64 { return frameTypePathResponse }

// Len implements Frame.
func (f *PathResponseFrame) Len() int {
	return varintLen(frameTypePathResponse) + len(f.Data)
}

// Append implements Frame.
func (f *PathResponseFrame) Append(b []byte) ([]byte, error) {
	b = appendVarint(b, frameTypePathResponse)
	b = append(b, f.Data[:]...)
	return b, nil
}

func (f *ConnectionCloseFrame) wireType() uint64 {
	if f.App {
		return frameTypeConnectionCloseApp
	}
	return frameTypeConnectionClose
}

// Len implements Frame.
func (f *ConnectionCloseFrame) Len() int {
	size := varintLen(f.wireType()) + varintLen(f.ErrorCode)
	if !f.App {
		size += varintLen(f.FrameType)
	}
	size += varintLen(uint64(len(f.Reason))) + len(f.Reason)
	return size
}

// Append implements Frame.
func (f *ConnectionCloseFrame) Append(b []byte) ([]byte, error) {
	b = appendVarint(b, f.wireType())
	b = appendVarint(b, f.ErrorCode)
	if !f.App {
		b = appendVarint(b, f.FrameType)
	}
	b = appendVarint(b, uint64(len(f.Reason)))
	b = append(b, f.Reason...)
	return b, nil
}

func (f *HandshakeDoneFrame) wireType() uint64 { return frameTypeHandshakeDone }

// Len implements Frame.
func (f *HandshakeDoneFrame) Len() int {
	return varintLen(frameTypeHandshakeDone)
}

// Append implements Frame.
func (f *HandshakeDoneFrame) Append(b []byte) ([]byte, error) {
	return appendVarint(b, frameTypeHandshakeDone), nil
}
