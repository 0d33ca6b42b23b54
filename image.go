package hwdec

import "github.com/gogpu/hwdec/driver"

// imageBuffer ties a driver image and its CPU mapping to the device that
// produced it. It backs a retrieved frame; free runs when the frame's last
// reference drops and releases everything in reverse acquisition order.
type imageBuffer struct {
	dev    *DeviceContext
	image  driver.Image
	mapped bool
}

// free releases the mapping and the image, skipping whatever was never
// created, then drops the device reference. Safe to call from any stage of
// a partially built retrieval.
func (b *imageBuffer) free() {
	d := b.dev
	if b.mapped {
		if st := d.drv.UnmapBuffer(d.display, b.image.Buf); !st.Ok() {
			Logger().Warn("unmap image buffer failed", "status", st)
		}
	}
	if b.image.ID != driver.InvalidID {
		if st := d.drv.DestroyImage(d.display, b.image.ID); !st.Ok() {
			Logger().Warn("destroy image failed", "status", st)
		}
	}
	d.unref()
}

// RetrieveImage copies the frame's hardware surface into a CPU-mappable
// driver image and republishes the frame on top of the mapped memory: the
// planes address the image's declared offsets and pitches, the dimensions
// and metadata carry over, and the surface reference (pool slot) is
// released. The frame must be hardware-backed.
//
// The copy path (GetImage) is used instead of a zero-copy derive on
// purpose: on the drivers this was profiled against, access to derived
// images is much slower than a plain copy.
//
// On failure the frame is left untouched and every resource the partial
// retrieval acquired is released; the error identifies the failing stage.
// A retrieval failure is per-frame: the device and config remain usable.
func (d *DeviceContext) RetrieveImage(f *Frame) error {
	if f == nil || f.payload == nil || !f.IsHardware() {
		return ErrNotHardwareFrame
	}

	d.ref()
	buf := &imageBuffer{
		dev: d,
		image: driver.Image{
			ID:  driver.InvalidID,
			Buf: driver.InvalidID,
		},
	}

	image, st := d.drv.CreateImage(d.display, d.imgFmt, f.Width, f.Height)
	if !st.Ok() {
		buf.free()
		return driverErr(StageImageCreate, st)
	}
	buf.image = image

	if st := d.drv.GetImage(d.display, f.Surface, f.Width, f.Height, image.ID); !st.Ok() {
		buf.free()
		return driverErr(StageImageCopy, st)
	}

	data, st := d.drv.MapBuffer(d.display, image.Buf)
	if !st.Ok() {
		buf.free()
		return driverErr(StageImageMap, st)
	}
	buf.mapped = true

	d.tmpMu.Lock()
	tmp := d.tmp
	tmp.Width = f.Width
	tmp.Height = f.Height
	tmp.PixelFormat = d.pixFmt
	tmp.Surface = driver.InvalidID
	for i := 0; i < image.NumPlanes && i < maxPlanes; i++ {
		tmp.Planes[i] = data[image.Offsets[i]:]
		tmp.Stride[i] = image.Pitches[i]
	}
	tmp.copyMetadata(f)
	tmp.payload = newPayload(buf.free)

	// Move the staged frame into the caller's, releasing the
	// surface-backed payload it held. The scratch frame is zeroed for the
	// next retrieval.
	old := f.payload
	*f = *tmp
	*tmp = Frame{}
	d.tmpMu.Unlock()
	old.unref()

	// YV12 stores V before U. Swap the chroma planes so the frame matches
	// its declared plane order; a fixed correction, not a conversion.
	if d.swapChroma {
		f.Planes[1], f.Planes[2] = f.Planes[2], f.Planes[1]
		f.Stride[1], f.Stride[2] = f.Stride[2], f.Stride[1]
	}
	return nil
}
