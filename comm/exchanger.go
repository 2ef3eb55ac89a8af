package comm

import "sort"

// Exchanger moves values between owned entities and their ghost copies on
// other ranks. Send lists hold owned local ids, in the order the receiving
// rank lists its matching ghost ids.
type Exchanger struct {
	comm      *Comm
	sendRanks []int
	recvRanks []int
	send      map[int][]int
	recv      map[int][]int
}

func NewExchanger(c *Comm, send, recv map[int][]int) (ex *Exchanger) {
	ex = &Exchanger{
		comm: c,
		send: send,
		recv: recv,
	}
	for r := range send {
		ex.sendRanks = append(ex.sendRanks, r)
	}
	for r := range recv {
		ex.recvRanks = append(ex.recvRanks, r)
	}
	sort.Ints(ex.sendRanks)
	sort.Ints(ex.recvRanks)
	return
}

func (ex *Exchanger) Comm() *Comm { return ex.comm }

// SendList returns the owned ids shipped to rank r
func (ex *Exchanger) SendList(r int) []int { return ex.send[r] }

// RecvList returns the ghost ids filled from rank r
func (ex *Exchanger) RecvList(r int) []int { return ex.recv[r] }

// Scatter copies owned values into the ghost slots of every other rank
func (ex *Exchanger) Scatter(vals []float64) {
	for _, r := range ex.sendRanks {
		ids := ex.send[r]
		buf := make([]float64, len(ids))
		for i, id := range ids {
			buf[i] = vals[id]
		}
		ex.comm.send(r, buf)
	}
	for _, r := range ex.recvRanks {
		buf := ex.comm.RecvFloats(r)
		for i, id := range ex.recv[r] {
			vals[id] = buf[i]
		}
	}
}

// Gather adds ghost values into their owners. Ghost slots are left as is.
func (ex *Exchanger) Gather(vals []float64) {
	for _, r := range ex.recvRanks {
		ids := ex.recv[r]
		buf := make([]float64, len(ids))
		for i, id := range ids {
			buf[i] = vals[id]
		}
		ex.comm.send(r, buf)
	}
	for _, r := range ex.sendRanks {
		buf := ex.comm.RecvFloats(r)
		for i, id := range ex.send[r] {
			vals[id] += buf[i]
		}
	}
}

// ScatterInts is Scatter for integer payloads such as markers
func (ex *Exchanger) ScatterInts(vals []int) {
	for _, r := range ex.sendRanks {
		ids := ex.send[r]
		buf := make([]int, len(ids))
		for i, id := range ids {
			buf[i] = vals[id]
		}
		ex.comm.send(r, buf)
	}
	for _, r := range ex.recvRanks {
		buf := ex.comm.RecvInts(r)
		for i, id := range ex.recv[r] {
			vals[id] = buf[i]
		}
	}
}
