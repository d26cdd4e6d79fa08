package api

import "github.com/vitaliisemenov/recsa-core/internal/hosts"

// publishNodeRequest is the POST /publish_node body: a peer announcing
// itself for admission into the cluster topology.
type publishNodeRequest struct {
	ID            int    `json:"id" validate:"gte=0"`
	Hostname      string `json:"hostname" validate:"required"`
	IP            string `json:"ip" validate:"required,ip"`
	Port          int    `json:"port" validate:"gt=0,lte=65535"`
	AppendToFile  bool   `json:"append_to_file"`
}

func (req publishNodeRequest) record() hosts.Record {
	return hosts.Record{
		ID:       intToNodeID(req.ID),
		Hostname: req.Hostname,
		IP:       req.IP,
		Port:     req.Port,
	}
}

// setByzBehaviorRequest is the POST /set-byz-behavior body.
type setByzBehaviorRequest struct {
	Behavior string `json:"behavior" validate:"required"`
}

// abdWriteRequest is the POST /abd/write body: an opaque application value.
type abdWriteRequest struct {
	Value interface{} `json:"value" validate:"required"`
}
