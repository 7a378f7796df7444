package audio

import "github.com/gen2brain/malgo"

// Device describes one enumerated input device.
type Device struct {
	Name      string
	IsDefault bool
}

// ListDevices enumerates capture-capable input devices via miniaudio,
// for the list_audio_devices CLI surface and the device-reconnection
// watcher's "has our device come back" poll.
func ListDevices() ([]Device, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, err
	}

	out := make([]Device, 0, len(infos))
	for _, info := range infos {
		out = append(out, Device{
			Name:      info.Name(),
			IsDefault: info.IsDefault != 0,
		})
	}
	return out, nil
}

// DeviceExists reports whether a device with the given name is
// currently enumerable. Used by the device watcher to detect that a
// vanished device has returned.
func DeviceExists(name string) (bool, error) {
	devices, err := ListDevices()
	if err != nil {
		return false, err
	}
	for _, d := range devices {
		if d.Name == name {
			return true, nil
		}
	}
	return false, nil
}
