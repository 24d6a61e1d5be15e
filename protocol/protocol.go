package protocol

type Command string

const (
	CmdRegisterVideo Command = "register_video"
	CmdMove          Command = "move"
	CmdStop          Command = "stop"
	CmdStatus        Command = "status"
	CmdQuit          Command = "quit"
)

const (
	DirectionForward  = "forward"
	DirectionBackward = "backward"
	DirectionStop     = "stop"
)

type Message struct {
	Cmd       Command `json:"cmd"`
	VideoPort int     `json:"video_port,omitempty"`
	Direction string  `json:"direction,omitempty"`
	Speed     float64 `json:"speed,omitempty"`
	Steering  float64 `json:"steering,omitempty"`
}

type Status struct {
	Battery  int     `json:"battery"`
	Speed    float64 `json:"speed"`
	Steering float64 `json:"steering"`
}
