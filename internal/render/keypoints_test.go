package render

import (
	"image"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/bhangra/internal/pose"
)

func TestVisible(t *testing.T) {
	kps := []pose.Keypoint{
		{Part: pose.Nose, Confidence: 0.9},
		{Part: pose.LeftEye, Confidence: 0.6},
		{Part: pose.RightEye, Confidence: 0.2},
	}

	got := Visible(kps, DefaultMinConfidence)
	if len(got) != 1 || got[0].Part != pose.Nose {
		t.Errorf("Visible() = %v, want only the nose", got)
	}
}

func TestLimbs(t *testing.T) {
	kps := []pose.Keypoint{
		{Part: pose.LeftShoulder, X: 100, Y: 200, Confidence: 0.9},
		{Part: pose.RightShoulder, X: 200.4, Y: 200.6, Confidence: 0.9},
		{Part: pose.LeftElbow, X: 90, Y: 260, Confidence: 0.1},
	}

	limbs := Limbs(kps, DefaultMinConfidence)
	if len(limbs) != 1 {
		t.Fatalf("Limbs() returned %d segments, want 1", len(limbs))
	}
	want := [2]image.Point{image.Pt(100, 200), image.Pt(200, 201)}
	if limbs[0] != want {
		t.Errorf("Limbs()[0] = %v, want %v", limbs[0], want)
	}
}

func TestKeypoints_Draws(t *testing.T) {
	img := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer img.Close()

	p := pose.UprightPose(150, 250)
	n := Keypoints(&img, p.Keypoints, DefaultStyle())
	if n == 0 {
		t.Fatal("Keypoints() drew nothing")
	}

	nose, _ := p.Find(pose.Nose)
	px := img.GetVecbAt(int(nose.Y), int(nose.X))
	// BGR layout: red is the last channel.
	if px[2] != 255 || px[0] != 0 {
		t.Errorf("pixel at nose = %v, want red", px)
	}
}

func TestKeypoints_EmptyImage(t *testing.T) {
	img := gocv.NewMat()
	defer img.Close()

	if n := Keypoints(&img, pose.UprightPose(150, 250).Keypoints, DefaultStyle()); n != 0 {
		t.Errorf("Keypoints() on empty image = %d, want 0", n)
	}
	if n := Keypoints(nil, nil, DefaultStyle()); n != 0 {
		t.Errorf("Keypoints(nil) = %d, want 0", n)
	}
	Label(&img, "Jumping")
}
