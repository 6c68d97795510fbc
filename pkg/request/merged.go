package request

type merged struct {
	subs    []*Request
	release func()
}

// Merge builds one request covering subs, which must be contiguous, same fd and same action.
// buf spans the union range; for writes it must already hold the sub payloads.
// release is called once every sub request has been completed.
func Merge(subs []*Request, buf []byte, release func()) *Request {
	head := subs[0]
	req := &Request{
		Fd:     head.Fd,
		Offset: head.Offset,
		Buf:    buf,
		Action: head.Action,
		Lane:   head.Lane,
		merged: &merged{
			subs:    subs,
			release: release,
		},
	}
	req.Callback = fanout
	return req
}

func (req *Request) Merged() bool {
	return req.merged != nil
}

func (req *Request) Subs() []*Request {
	if req.merged == nil {
		return nil
	}
	return req.merged.subs
}

func fanout(req *Request, outcome Outcome) {
	m := req.merged
	if !outcome.Completed() {
		for _, sub := range m.subs {
			sub.Complete(Failed(outcome.Errno))
		}
	} else {
		remain := outcome.N
		pos := 0
		for _, sub := range m.subs {
			size := len(sub.Buf)
			n := size
			if remain < n {
				n = remain
			}
			remain -= n
			if req.Action == Read && n > 0 {
				copy(sub.Buf[:n], req.Buf[pos:pos+n])
			}
			pos += size
			sub.Complete(Completed(n))
		}
	}
	if m.release != nil {
		m.release()
	}
}
