// Package render draws pose overlays on captured frames.
package render

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/bhangra/internal/pose"
)

// DefaultMinConfidence is the confidence a keypoint must exceed to be drawn.
const DefaultMinConfidence = 0.6

var (
	keypointColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	limbColor     = color.RGBA{R: 255, G: 178, B: 29, A: 255}
	labelColor    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	labelShadow   = color.RGBA{R: 0, G: 0, B: 0, A: 255}

	// skeleton pairs the parts joined by a limb line.
	skeleton = [][2]pose.Part{
		{pose.LeftShoulder, pose.RightShoulder},
		{pose.LeftShoulder, pose.LeftElbow},
		{pose.LeftElbow, pose.LeftWrist},
		{pose.RightShoulder, pose.RightElbow},
		{pose.RightElbow, pose.RightWrist},
		{pose.LeftShoulder, pose.LeftHip},
		{pose.RightShoulder, pose.RightHip},
		{pose.LeftHip, pose.RightHip},
		{pose.LeftHip, pose.LeftKnee},
		{pose.LeftKnee, pose.LeftAnkle},
		{pose.RightHip, pose.RightKnee},
		{pose.RightKnee, pose.RightAnkle},
	}
)

// Style controls overlay drawing.
type Style struct {
	MinConfidence float64
	Radius        int
	LineThickness int
}

// DefaultStyle returns red joints of radius 5 and thin limb lines.
func DefaultStyle() Style {
	return Style{
		MinConfidence: DefaultMinConfidence,
		Radius:        5,
		LineThickness: 2,
	}
}

// Visible returns the keypoints whose confidence exceeds minConfidence.
func Visible(keypoints []pose.Keypoint, minConfidence float64) []pose.Keypoint {
	out := make([]pose.Keypoint, 0, len(keypoints))
	for _, kp := range keypoints {
		if kp.Confidence > minConfidence {
			out = append(out, kp)
		}
	}
	return out
}

// Limbs returns the skeleton segments whose two ends are both visible.
func Limbs(keypoints []pose.Keypoint, minConfidence float64) [][2]image.Point {
	var byPart [pose.NumParts]*pose.Keypoint
	visible := Visible(keypoints, minConfidence)
	for i := range visible {
		p := visible[i].Part
		if p >= 0 && p < pose.NumParts {
			byPart[p] = &visible[i]
		}
	}

	var out [][2]image.Point
	for _, limb := range skeleton {
		a, b := byPart[limb[0]], byPart[limb[1]]
		if a == nil || b == nil {
			continue
		}
		out = append(out, [2]image.Point{point(*a), point(*b)})
	}
	return out
}

// Keypoints draws limbs and joints for confidently detected keypoints and
// returns the number of joints drawn.
func Keypoints(img *gocv.Mat, keypoints []pose.Keypoint, style Style) int {
	if img == nil || img.Empty() {
		return 0
	}

	for _, l := range Limbs(keypoints, style.MinConfidence) {
		gocv.Line(img, l[0], l[1], limbColor, style.LineThickness)
	}

	visible := Visible(keypoints, style.MinConfidence)
	for _, kp := range visible {
		gocv.Circle(img, point(kp), style.Radius, keypointColor, -1)
	}
	return len(visible)
}

// Label writes text in the top-left corner of img.
func Label(img *gocv.Mat, text string) {
	if img == nil || img.Empty() || text == "" {
		return
	}
	origin := image.Pt(10, 30)
	gocv.PutText(img, text, origin.Add(image.Pt(1, 1)), gocv.FontHersheySimplex, 0.8, labelShadow, 3)
	gocv.PutText(img, text, origin, gocv.FontHersheySimplex, 0.8, labelColor, 2)
}

func point(kp pose.Keypoint) image.Point {
	return image.Pt(int(kp.X+0.5), int(kp.Y+0.5))
}
