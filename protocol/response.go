package protocol

import (
	"errors"
	"fmt"
)

// ProcessResponse feeds raw bytes read from the reader into the decoder and
// dispatches every frame they complete, in order. A failing frame does not
// stop the frames after it; all failures are returned joined.
func (r *Reader) ProcessResponse(raw []byte) error {
	r.log.Printf("SM25 %s < Raw Response %v Length %d", r.Host, hexBytes(raw), len(raw))

	var errs []error
	for _, resp := range r.dec.Feed(raw) {
		r.log.Printf("SM25 %s < %v", r.Host, resp)
		if err := r.processResponsePacket(resp); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Reader) processResponsePacket(resp *ResponsePacket) error {
	r.ev.response.emit(resp)

	if last := r.pending.Load(); last != nil && last.Command().matches(resp.Command()) {
		last.setResponse(resp)
	}

	if err := r.validateChecksum(resp); err != nil {
		return err
	}

	switch resp.Command() {
	case CmdEnroll, CmdEnrollAndStoreInRAM:
		r.processEnrollResponse(resp)
	case CmdGetEmptyID:
		r.processEmptyIDResponse(resp)
	case CmdClearTemplate:
		r.processClearTemplateResponse(resp)
	case CmdClearAllTemplate:
		r.processClearAllTemplatesResponse(resp)
	case CmdGetTemplateStatus:
		r.processTemplateStatusResponse(resp)
	default:
		r.sendStatus(fmt.Sprintf("%v %d", resp.Command(), resp.Data()))
	}
	return nil
}

func (r *Reader) validateChecksum(resp *ResponsePacket) error {
	if resp.ChecksumValid() {
		return nil
	}
	err := &ChecksumError{
		Command:  resp.Command(),
		Received: resp.ChecksumReceived(),
		Computed: resp.ChecksumCalculated(),
		Frame:    resp.Bytes(),
	}
	r.log.Printf("%v", err)
	return err
}

func (r *Reader) processTemplateStatusResponse(resp *ResponsePacket) {
	if resp.ReturnCode() == RetSuccess {
		r.sendStatus(resp.DataTemplateStatus().String())
	} else {
		r.sendStatus(resp.DataReturnCode().String())
	}
}

func (r *Reader) processClearAllTemplatesResponse(resp *ResponsePacket) {
	if resp.ReturnCode() == RetSuccess {
		r.sendStatus(fmt.Sprintf("All templates removed. Qt. %d", resp.Data()))
	} else {
		r.sendStatus(fmt.Sprintf("Can't remove all templates. %v", ReturnCode(resp.Data())))
	}
}

func (r *Reader) processClearTemplateResponse(resp *ResponsePacket) {
	switch {
	case resp.ReturnCode() == RetSuccess:
		r.sendStatus(fmt.Sprintf("Template %d removed", resp.Data()))
	case resp.Data() == int(RetTemplateEmpty):
		r.sendStatus("Empty template")
	default:
		r.sendStatus(fmt.Sprintf("Can't remove template. %v", ReturnCode(resp.Data())))
	}
}

func (r *Reader) processEmptyIDResponse(resp *ResponsePacket) {
	r.sendStatus(fmt.Sprintf("ID available %d", resp.Data()))
	r.ev.idAvailable.emit(resp.Data())
}

func (r *Reader) processEnrollResponse(resp *ResponsePacket) {
	st := EnrollStatus{
		Ret:            resp.ReturnCode(),
		GD:             resp.DataGD(),
		DataReturnCode: resp.DataReturnCode(),
	}

	switch resp.ReturnCode() {
	case RetSuccess:
		r.processEnrollSuccess(resp, &st)
	case RetFail:
		r.processEnrollFail(resp, &st)
	}

	st.State = r.EnrollState()
	r.ev.enrollStatus.emit(st)
}

func (r *Reader) processEnrollSuccess(resp *ResponsePacket, st *EnrollStatus) {
	switch resp.DataGD() {
	case GDNeedFirstSweep:
		r.enrolling.Store(true)
		r.setEnrollState(EnrollWaitingFirstSweep)
		r.ev.enroll.emit(1)
		r.sendStatus("Put your finger for the first time")
	case GDNeedSecondSweep:
		r.setEnrollState(EnrollWaitingSecondSweep)
		r.ev.enroll.emit(2)
		r.sendStatus("Put your finger for the second time")
	case GDNeedThirdSweep:
		r.setEnrollState(EnrollWaitingThirdSweep)
		r.ev.enroll.emit(3)
		r.sendStatus("Put your finger for the third time")
	case GDNeedReleaseFinger:
		r.setEnrollState(EnrollWaitingFingerRelease)
		r.sendStatus("Take off your finger")
	default:
		r.enrolling.Store(false)
		r.setEnrollState(EnrollSuccess)
		r.ev.enroll.emit(EnrollProgressComplete)
		r.sendStatus(fmt.Sprintf("Enroll %d", resp.Data()))
		st.Data, st.HasData = resp.Data(), true
	}
}

func (r *Reader) processEnrollFail(resp *ResponsePacket, st *EnrollStatus) {
	switch resp.DataReturnCode() {
	case RetTemplateNotEmpty:
		r.sendStatus("Template already enrolled")
	case RetBadQuality:
		// The reader asks for the same sweep again.
		r.sendStatus("Bad quality, put your finger again")
	case RetGeneralize:
		r.enrolling.Store(false)
		r.setEnrollState(EnrollFailed)
		r.sendStatus("Generalization error")
		r.ev.generalizeFail.emit(struct{}{})
	case RetTimeout:
		r.enrolling.Store(false)
		r.setEnrollState(EnrollTimedOut)
		r.sendStatus("Timeout")
		r.ev.enrollTimeout.emit(struct{}{})
	case RetDuplicationID:
		dup := resp.Data() >> 8
		r.sendStatus(fmt.Sprintf("Id duplicated with %d", dup))
		st.Data, st.HasData = dup, true
	case RetFPCancel:
		r.enrolling.Store(false)
		r.setEnrollState(EnrollCanceled)
		r.ev.enroll.emit(EnrollProgressCanceled)
		r.sendStatus("Canceled")
	}
}

func (r *Reader) sendStatus(status string) {
	r.log.Printf("SM25 %s Status %s", r.Host, status)
	r.ev.status.emit(status)
}
