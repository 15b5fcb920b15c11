package config

type WorkerKeyStruct struct {
	PersistResultLogQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistResultLogQueue: "persist_result_log_queue",
}
