package webutils

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/mogaika/mmd_browser/utils"
)

// request bodies larger than this are refused
const MaxBodySize = 256 << 20

func WriteFileHeaders(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+"\"")
}

func WriteFile(w http.ResponseWriter, in io.Reader, name string) {
	WriteFileHeaders(w, name)
	if _, err := io.Copy(w, in); err != nil {
		utils.Logger("web").Warnf("Error when writing file %q: %v", name, err)
	}
}

func WriteJson(w http.ResponseWriter, data interface{}) {
	res, err := json.Marshal(data)
	if err != nil {
		WriteError(w, errors.Wrapf(err, "Failed to marshal"))
	} else {
		w.Header().Set("Content-Type", "application/json")
		WriteResult(w, res)
	}
}

// ReadJson decodes POST body into v
func ReadJson(r *http.Request, v interface{}) error {
	if strings.ToUpper(r.Method) != http.MethodPost {
		return errors.Errorf("Invalid http method %q", r.Method)
	}
	defer r.Body.Close()

	if err := json.NewDecoder(io.LimitReader(r.Body, MaxBodySize)).Decode(v); err != nil {
		return errors.Wrapf(err, "Failed to unmarshal")
	}
	return nil
}

// ReadFormFile returns content of multipart form file field
func ReadFormFile(r *http.Request, formFileKey string) ([]byte, string, error) {
	if strings.ToUpper(r.Method) != http.MethodPost {
		return nil, "", errors.Errorf("Invalid http method %q", r.Method)
	}

	f, header, err := r.FormFile(formFileKey)
	if err != nil {
		return nil, "", errors.Wrapf(err, "Failed to get file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxBodySize))
	if err != nil {
		return nil, "", errors.Wrapf(err, "Failed to read")
	}
	return data, header.Filename, nil
}

func WriteResult(w http.ResponseWriter, data []byte) {
	_, err := w.Write(data)
	if err != nil {
		utils.Logger("web").Warnf("Error when writing response: %v", err)
	}
}

func WriteError(w http.ResponseWriter, err error) {
	WriteErrorStatus(w, http.StatusInternalServerError, err)
}

func WriteErrorStatus(w http.ResponseWriter, code int, err error) {
	type jError struct {
		Error string `json:"error"`
	}
	data, merr := json.Marshal(&jError{Error: err.Error()})
	if merr != nil {
		utils.Logger("web").Errorf("Error marshaling error '%v': %v", err, merr)
		return
	}
	utils.Logger("web").Warnf("HERR: %v", string(data))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	WriteResult(w, data)
}
