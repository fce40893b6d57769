package config

type WorkerKeyStruct struct {
	NarrationQueue string
}

var WorkerKey = &WorkerKeyStruct{
	NarrationQueue: "narration_queue",
}
