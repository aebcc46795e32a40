package error

import (
    "encoding/json"
)

type DBerror struct {
    msg string
    code int
}

func (dbError DBerror) Error() string {
    return dbError.msg
}

func (dbError DBerror) Code() int {
    return dbError.code
}

func (dbError DBerror) JSON() []byte {
    result, _ := json.Marshal(map[string]interface{}{
        "message": dbError.msg,
        "code": dbError.code,
    })

    return result
}

const (
    eINVALID_INPUT = iota
    eVALIDATION = iota
    eCOUNTER_MISMATCH = iota
    eWRONG_MODE = iota
    eSTORAGE = iota
    eUNREACHABLE = iota
    ePREPARE_FAILED = iota
    eTWO_PHASE_COMMIT_FAILED = iota
    eLICENSE_VIOLATION = iota
    eCLUSTER_INCONSISTENT = iota
    eCORRUPTED = iota
    eEMPTY = iota
    eACTIVATED = iota
    eSTOPPED = iota
    eCANCELLED = iota
)

var (
    EInvalidInput = DBerror{ "The provided input is not valid", eINVALID_INPUT }
    EValidation = DBerror{ "The cluster or change violates a configuration invariant", eVALIDATION }
    ECounterMismatch = DBerror{ "The expected mutative message count does not match. Another coordinator may be active", eCOUNTER_MISMATCH }
    EWrongMode = DBerror{ "The server mode does not allow this message", eWRONG_MODE }
    EStorage = DBerror{ "The storage layer was unable to durably record the operation", eSTORAGE }
    EUnreachable = DBerror{ "The server could not be reached", eUNREACHABLE }
    EPrepareFailed = DBerror{ "At least one server rejected the prepare message", ePREPARE_FAILED }
    ETwoPhaseCommitFailed = DBerror{ "The commit phase only partially completed. The change must be repaired by a later run", eTWO_PHASE_COMMIT_FAILED }
    ELicenseViolation = DBerror{ "The cluster exceeds the installed license capacity", eLICENSE_VIOLATION }
    EClusterInconsistent = DBerror{ "The servers disagree about the current configuration state", eCLUSTER_INCONSISTENT }
    ECorrupted = DBerror{ "The database is corrupted", eCORRUPTED }
    EEmpty = DBerror{ "No record exists for the requested version", eEMPTY }
    EAlreadyActivated = DBerror{ "This node has already been activated", eACTIVATED }
    EStopped = DBerror{ "The node was stopped before the operation completed", eSTOPPED }
    ECancelled = DBerror{ "The operation was cancelled", eCANCELLED }
)
