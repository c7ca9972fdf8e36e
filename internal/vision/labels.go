package vision

// cocoLabels maps the TensorFlow COCO class ids used by SSD MobileNet to
// names. Unused ids are empty.
var cocoLabels = [...]string{
	1: "person", 2: "bicycle", 3: "car", 4: "motorcycle", 5: "airplane",
	6: "bus", 7: "train", 8: "truck", 9: "boat", 10: "traffic light",
	11: "fire hydrant", 13: "stop sign", 14: "parking meter", 15: "bench",
	16: "bird", 17: "cat", 18: "dog", 19: "horse", 20: "sheep", 21: "cow",
	22: "elephant", 23: "bear", 24: "zebra", 25: "giraffe", 27: "backpack",
	28: "umbrella", 31: "handbag", 32: "tie", 33: "suitcase", 34: "frisbee",
	35: "skis", 36: "snowboard", 37: "sports ball", 38: "kite",
	39: "baseball bat", 40: "baseball glove", 41: "skateboard",
	42: "surfboard", 43: "tennis racket", 44: "bottle", 46: "wine glass",
	47: "cup", 48: "fork", 49: "knife", 50: "spoon", 51: "bowl",
	52: "banana", 53: "apple", 54: "sandwich", 55: "orange", 56: "broccoli",
	57: "carrot", 58: "hot dog", 59: "pizza", 60: "donut", 61: "cake",
	62: "chair", 63: "couch", 64: "potted plant", 65: "bed",
	67: "dining table", 70: "toilet", 72: "tv", 73: "laptop", 74: "mouse",
	75: "remote", 76: "keyboard", 77: "cell phone", 78: "microwave",
	79: "oven", 80: "toaster", 81: "sink", 82: "refrigerator", 84: "book",
	85: "clock", 86: "vase", 87: "scissors", 88: "teddy bear",
	89: "hair drier", 90: "toothbrush",
}

// COCOLabel returns the name for a COCO class id, or "" if unknown.
func COCOLabel(id int) string {
	if id < 0 || id >= len(cocoLabels) {
		return ""
	}
	return cocoLabels[id]
}

// Bone joins two keypoint indexes for skeleton drawing.
type Bone [2]int

// PoseKeypoints are the 18 body parts of the OpenPose COCO model, in
// heatmap channel order.
var PoseKeypoints = []string{
	"nose", "neck", "right_shoulder", "right_elbow", "right_wrist",
	"left_shoulder", "left_elbow", "left_wrist", "right_hip", "right_knee",
	"right_ankle", "left_hip", "left_knee", "left_ankle", "right_eye",
	"left_eye", "right_ear", "left_ear",
}

// PoseSkeleton connects PoseKeypoints.
var PoseSkeleton = []Bone{
	{1, 2}, {1, 5}, {2, 3}, {3, 4}, {5, 6}, {6, 7},
	{1, 8}, {8, 9}, {9, 10}, {1, 11}, {11, 12}, {12, 13},
	{1, 0}, {0, 14}, {14, 16}, {0, 15}, {15, 17},
}

// HandKeypoints are the 21 hand landmarks: the wrist followed by four
// joints per finger from base to tip.
var HandKeypoints = []string{
	"wrist",
	"thumb_cmc", "thumb_mcp", "thumb_ip", "thumb_tip",
	"index_mcp", "index_pip", "index_dip", "index_tip",
	"middle_mcp", "middle_pip", "middle_dip", "middle_tip",
	"ring_mcp", "ring_pip", "ring_dip", "ring_tip",
	"pinky_mcp", "pinky_pip", "pinky_dip", "pinky_tip",
}

// HandSkeleton connects HandKeypoints.
var HandSkeleton = []Bone{
	{0, 1}, {1, 2}, {2, 3}, {3, 4},
	{0, 5}, {5, 6}, {6, 7}, {7, 8},
	{0, 9}, {9, 10}, {10, 11}, {11, 12},
	{0, 13}, {13, 14}, {14, 15}, {15, 16},
	{0, 17}, {17, 18}, {18, 19}, {19, 20},
}
