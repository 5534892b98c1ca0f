/*
Package s3dev is a tiny S3 stand-in that stores objects on the local
filesystem. It understands just enough of the protocol for the newsletter
archive: create bucket, put object, get object.
*/
package s3dev

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/luminagoods/site/src/logging"
	"github.com/spf13/cobra"
)

func Command() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "s3dev [storage folder]",
		Short: "Run a local S3 server that stores in the filesystem",
		Run: func(cmd *cobra.Command, args []string) {
			targetFolder := "./tmp/s3"
			if len(args) > 0 {
				targetFolder = args[0]
			}
			if err := os.MkdirAll(targetFolder, fs.ModePerm); err != nil {
				logging.Fatal().Err(err).Msg("failed to create storage folder")
			}

			logging.Info().Str("addr", addr).Str("folder", targetFolder).Msg("Serving local S3")
			err := http.ListenAndServe(addr, Handler(targetFolder))
			logging.Fatal().Err(err).Msg("s3dev server stopped")
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":9100", "address to listen on")
	return cmd
}

func Handler(targetFolder string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bucket, key := bucketKey(r)
		log := logging.With().Str("bucket", bucket).Str("key", key).Str("method", r.Method).Logger()

		if bucket == "" || strings.Contains(bucket, "..") || strings.Contains(key, "..") {
			writeError(w, http.StatusBadRequest, "InvalidRequest")
			return
		}
		bucketDir := filepath.Join(targetFolder, bucket)

		switch r.Method {
		case http.MethodPut:
			bodyBytes, err := io.ReadAll(r.Body)
			if err != nil {
				log.Error().Err(err).Msg("failed to read body")
				writeError(w, http.StatusInternalServerError, "InternalError")
				return
			}
			log.Debug().Int("len", len(bodyBytes)).Msg("PUT")

			if key == "" {
				if err := os.MkdirAll(bucketDir, fs.ModePerm); err != nil {
					writeError(w, http.StatusInternalServerError, "InternalError")
					return
				}
				w.Header().Set("Location", "/"+bucket)
				return
			}
			if _, err := os.Stat(bucketDir); errors.Is(err, fs.ErrNotExist) {
				writeError(w, http.StatusNotFound, "NoSuchBucket")
				return
			}
			if err := os.WriteFile(filepath.Join(bucketDir, key), bodyBytes, 0o644); err != nil {
				log.Error().Err(err).Msg("failed to write object")
				writeError(w, http.StatusInternalServerError, "InternalError")
				return
			}
			w.Header().Set("ETag", fmt.Sprintf(`"%x"`, len(bodyBytes)))
		case http.MethodGet:
			fileBytes, err := os.ReadFile(filepath.Join(bucketDir, key))
			if errors.Is(err, fs.ErrNotExist) {
				writeError(w, http.StatusNotFound, "NoSuchKey")
				return
			} else if err != nil {
				writeError(w, http.StatusInternalServerError, "InternalError")
				return
			}
			w.Write(fileBytes)
		default:
			writeError(w, http.StatusNotImplemented, "NotImplemented")
		}
	})
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message></Error>`, code, code)
}

// bucketKey splits a path-style request path. Slashes in the key are stored as
// ~ so every object is a single file in its bucket folder.
func bucketKey(r *http.Request) (string, string) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	slashIdx := strings.IndexByte(path, '/')
	if slashIdx == -1 {
		return path, ""
	}
	return path[:slashIdx], strings.ReplaceAll(path[slashIdx+1:], "/", "~")
}
