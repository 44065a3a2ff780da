package pose

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/bhangra/internal/logger"
)

const serviceScript = "posenet_service.py"

// PoseNetEstimator implements Estimator using a Python PoseNet subprocess.
//
// Each request is a 4-byte big-endian length followed by a JPEG image.
// Each response is one line of JSON in PoseNet's single-pose shape:
//
//	{"score": 0.9, "keypoints": [{"part": "nose", "score": 0.99, "position": {"x": 1, "y": 2}}]}
type PoseNetEstimator struct {
	config    Config
	script    string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
}

// NewPoseNetEstimator creates a new PoseNet estimator.
// The Python process is started lazily on first estimation.
func NewPoseNetEstimator(config Config) (*PoseNetEstimator, error) {
	script := config.Script
	if script == "" {
		script = findServiceScript()
	}
	if script == "" {
		return nil, fmt.Errorf("%s not found", serviceScript)
	}
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("estimation script: %w", err)
	}
	if config.IdleTimeoutSec <= 0 {
		config.IdleTimeoutSec = 30
	}

	return &PoseNetEstimator{
		config: config,
		script: script,
	}, nil
}

// Estimate encodes frame, sends it to the service and decodes the pose.
func (e *PoseNetEstimator) Estimate(frame *gocv.Mat) (*Pose, error) {
	if frame == nil || frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureStarted(); err != nil {
		return nil, err
	}

	input := *frame
	if e.config.FlipHorizontal {
		flipped := gocv.NewMat()
		defer flipped.Close()
		gocv.Flip(*frame, &flipped, 1)
		input = flipped
	}

	buf, err := gocv.IMEncode(".jpg", input)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	if err := writeRequest(e.stdin, buf.GetBytes()); err != nil {
		return nil, err
	}

	line, err := e.stdout.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	pose, err := DecodePoseNet([]byte(line))
	if err != nil {
		return nil, err
	}

	e.resetIdleTimer()
	return pose, nil
}

// Close shuts down the Python process.
func (e *PoseNetEstimator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdown()
}

func writeRequest(w io.Writer, data []byte) error {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := w.Write(length); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

func (e *PoseNetEstimator) ensureStarted() error {
	if e.started {
		return nil
	}

	python := e.config.Python
	if python == "" {
		python = findVenvPython()
	}
	if python == "" {
		python = "python3"
	}

	e.cmd = exec.Command(python, e.script)

	stdin, err := e.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := e.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	e.cmd.Stderr = os.Stderr

	if err := e.cmd.Start(); err != nil {
		return fmt.Errorf("start posenet service: %w", err)
	}

	e.stdin = stdin
	e.stdout = bufio.NewReader(stdout)
	e.started = true

	logger.Infof("PoseNet service started (pid %d)", e.cmd.Process.Pid)
	return nil
}

func (e *PoseNetEstimator) shutdown() error {
	if !e.started {
		return nil
	}

	if e.idleTimer != nil {
		e.idleTimer.Stop()
		e.idleTimer = nil
	}

	if e.stdin != nil {
		e.stdin.Close()
	}

	err := e.cmd.Wait()
	e.started = false
	e.cmd = nil
	e.stdin = nil
	e.stdout = nil

	logger.Infof("PoseNet service stopped")
	return err
}

func (e *PoseNetEstimator) resetIdleTimer() {
	if e.idleTimer != nil {
		e.idleTimer.Stop()
	}
	e.idleTimer = time.AfterFunc(time.Duration(e.config.IdleTimeoutSec)*time.Second, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if err := e.shutdown(); err != nil {
			logger.Warnf("idle shutdown of PoseNet service: %v", err)
		}
	})
}

func findServiceScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", serviceScript),
		filepath.Join("..", "scripts", serviceScript),
		filepath.Join(execDir, "scripts", serviceScript),
		filepath.Join(os.Getenv("HOME"), ".bhangra", "scripts", serviceScript),
	}

	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".bhangra/venv/bin/python"),
	}

	return firstExisting(candidates)
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}

// jsonPose mirrors the PoseNet single-pose result.
type jsonPose struct {
	Score     float64        `json:"score"`
	Keypoints []jsonKeypoint `json:"keypoints"`
	Error     string         `json:"error,omitempty"`
}

type jsonKeypoint struct {
	Part     string  `json:"part"`
	Score    float64 `json:"score"`
	Position struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"position"`
}

// DecodePoseNet parses one PoseNet JSON result. Keypoints with unknown
// part names are skipped.
func DecodePoseNet(data []byte) (*Pose, error) {
	var raw jsonPose
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if raw.Error != "" {
		return nil, fmt.Errorf("posenet service: %s", raw.Error)
	}

	p := &Pose{
		Score:     raw.Score,
		Keypoints: make([]Keypoint, 0, len(raw.Keypoints)),
	}
	for _, kp := range raw.Keypoints {
		part, err := ParsePart(kp.Part)
		if err != nil {
			continue
		}
		p.Keypoints = append(p.Keypoints, Keypoint{
			Part:       part,
			X:          kp.Position.X,
			Y:          kp.Position.Y,
			Confidence: kp.Score,
		})
	}

	return p, nil
}
