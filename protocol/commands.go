package protocol

import "encoding/binary"

// TemplateSize is the size of a template written with WriteTemplateData.
const TemplateSize = 498

// Each helper sends one command and returns its code. Responses are
// reported through the Reader's events; see Sync for blocking calls.

func (r *Reader) GetDeviceName() (Command, error) {
	return r.Send(r.NewPacket(CmdGetDeviceName, nil))
}

func (r *Reader) GetFWVersion() (Command, error) {
	return r.Send(r.NewPacket(CmdGetFWVersion, nil))
}

func (r *Reader) GetDeviceID() (Command, error) {
	return r.Send(r.NewPacket(CmdGetDeviceID, nil))
}

func (r *Reader) GetEmptyID() (Command, error) {
	return r.Send(r.NewPacket(CmdGetEmptyID, nil))
}

// Enroll starts a three sweep enrollment into template slot id.
func (r *Reader) Enroll(id uint16) (Command, error) {
	return r.Send(r.newIntPacket(CmdEnroll, int(id)))
}

// EnrollAndStoreInRAM enrolls without storing the template in a slot. Read
// it back with GetEnrollData.
func (r *Reader) EnrollAndStoreInRAM() (Command, error) {
	return r.Send(r.NewPacket(CmdEnrollAndStoreInRAM, nil))
}

func (r *Reader) GetEnrollData() (Command, error) {
	return r.Send(r.NewPacket(CmdGetEnrollData, nil))
}

func (r *Reader) GetEnrollCount() (Command, error) {
	return r.Send(r.NewPacket(CmdGetEnrollCount, nil))
}

func (r *Reader) ClearTemplate(id uint16) (Command, error) {
	return r.Send(r.newIntPacket(CmdClearTemplate, int(id)))
}

func (r *Reader) GetTemplateStatus(id uint16) (Command, error) {
	return r.Send(r.newIntPacket(CmdGetTemplateStatus, int(id)))
}

func (r *Reader) ClearAllTemplate() (Command, error) {
	return r.Send(r.NewPacket(CmdClearAllTemplate, nil))
}

func (r *Reader) SetDeviceID(id uint16) (Command, error) {
	return r.Send(r.newIntPacket(CmdSetDeviceID, int(id)))
}

func (r *Reader) SetFingerTimeOut(t uint16) (Command, error) {
	return r.Send(r.newIntPacket(CmdSetFingerTimeOut, int(t)))
}

// FPCancel interrupts an enrollment or identification. It is the only
// command accepted while enrolling.
func (r *Reader) FPCancel() (Command, error) {
	return r.Send(r.NewPacket(CmdFPCancel, nil))
}

func (r *Reader) GetDuplicationCheck() (Command, error) {
	return r.Send(r.NewPacket(CmdGetDuplicationCheck, nil))
}

func (r *Reader) SetDuplicationCheck(check bool) (Command, error) {
	v := 0
	if check {
		v = 1
	}
	return r.Send(r.newIntPacket(CmdSetDuplicationCheck, v))
}

func (r *Reader) GetSecurityLevel() (Command, error) {
	return r.Send(r.NewPacket(CmdGetSecurityLevel, nil))
}

func (r *Reader) SetSecurityLevel(level uint16) (Command, error) {
	return r.Send(r.newIntPacket(CmdSetSecurityLevel, int(level)))
}

func (r *Reader) GetFingerTimeOut() (Command, error) {
	return r.Send(r.NewPacket(CmdGetFingerTimeOut, nil))
}

func (r *Reader) ReadTemplate(id uint16) (Command, error) {
	return r.Send(r.newIntPacket(CmdReadTemplate, int(id)))
}

// WriteTemplate announces a template upload. Follow it with
// WriteTemplateData.
func (r *Reader) WriteTemplate() (Command, error) {
	return r.Send(r.newIntPacket(CmdWriteTemplate, TemplateSize))
}

// WriteTemplateData uploads template into slot id as a data packet.
func (r *Reader) WriteTemplateData(id uint16, template []byte) (Command, error) {
	p, err := r.templateDataPacket(id, template)
	if err != nil {
		return CmdWriteTemplate, err
	}
	return r.Send(p)
}

func (r *Reader) templateDataPacket(id uint16, template []byte) (*CommandPacket, error) {
	if len(template) > TemplateSize {
		return nil, ErrTemplateTooLarge
	}
	data := make([]byte, 2, 2+len(template))
	binary.LittleEndian.PutUint16(data, id)
	data = append(data, template...)
	return r.NewPacket(CmdWriteTemplate, data), nil
}

func (r *Reader) TestConnection() (Command, error) {
	return r.Send(r.NewPacket(CmdTestConnection, nil))
}
