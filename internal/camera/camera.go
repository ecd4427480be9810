// Package camera captures frames from a video device and shows them in a window,
// using OpenCV through gocv.
package camera

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// DefaultFPS is assumed when the device does not report a frame rate.
const DefaultFPS = 30.0

var ErrReadFailed = errors.New("failed to read frame from camera")

// Camera is an opened capture device.
type Camera struct {
	mu    sync.Mutex
	index int
	cap   *gocv.VideoCapture
	mat   gocv.Mat
}

// Open opens the camera with the given device index.
func Open(index int) (*Camera, error) {
	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("could not open camera %d: %w", index, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("could not open camera %d", index)
	}
	return &Camera{index: index, cap: vc, mat: gocv.NewMat()}, nil
}

// FPS returns the frame rate reported by the device, or DefaultFPS.
func (c *Camera) FPS() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	fps := c.cap.Get(gocv.VideoCaptureFPS)
	if fps <= 0 {
		return DefaultFPS
	}
	return fps
}

// Read blocks until the next frame is available and returns it as an RGBA image.
func (c *Camera) Read() (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cap == nil {
		return nil, fmt.Errorf("camera %d is closed", c.index)
	}
	if ok := c.cap.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, fmt.Errorf("%w %d", ErrReadFailed, c.index)
	}
	img, err := c.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	return img, nil
}

func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cap == nil {
		return nil
	}
	err := c.cap.Close()
	c.mat.Close()
	c.cap = nil
	return err
}

// Preview shows frames in a desktop window.
type Preview struct {
	window *gocv.Window
}

func NewPreview(title string) *Preview {
	return &Preview{window: gocv.NewWindow(title)}
}

// Show displays img and reports whether the user asked to quit, by pressing 'q'
// or closing the window.
func (p *Preview) Show(img image.Image) (quit bool, err error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return false, fmt.Errorf("failed to convert frame for preview: %w", err)
	}
	defer mat.Close()

	p.window.IMShow(mat)
	key := p.window.WaitKey(1)
	return key&0xFF == 'q' || !p.window.IsOpen(), nil
}

func (p *Preview) Close() error {
	return p.window.Close()
}
