package assets

import (
	_ "embed"
)

// DetectorWorkerPy is the inference worker script run by the Python subprocess.
// It loads a YOLO object detector and MediaPipe face mesh and answers
// length-prefixed msgpack requests on stdin.
//
//go:embed detector_worker.py
var DetectorWorkerPy []byte
