// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package backblaze

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kothar/go-backblaze"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	ErrBucketNotFound     = errors.New("bucket not found")
	ErrInvalidDestination = errors.New("destination must be of the form b2://bucket[/dir]")
)

// Destination is a bucket and the directory inside it that exports are
// written to
type Destination struct {
	Bucket string
	Dir    string
}

// ParseDestination parses a b2://bucket/dir url
func ParseDestination(dest string) (Destination, error) {
	rest, ok := strings.CutPrefix(dest, "b2://")
	if !ok {
		return Destination{}, fmt.Errorf("%w: %q", ErrInvalidDestination, dest)
	}

	bucket, dir, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Destination{}, fmt.Errorf("%w: %q", ErrInvalidDestination, dest)
	}

	return Destination{Bucket: bucket, Dir: strings.Trim(dir, "/")}, nil
}

// ObjectName is the name fn is stored under in the bucket
func (dest Destination) ObjectName(fn string) string {
	if dest.Dir == "" {
		return filepath.Base(fn)
	}
	return path.Join(dest.Dir, filepath.Base(fn))
}

// Upload copies the local file fn to dest using the application key from the
// backblaze.application_id and backblaze.application_key settings
func Upload(fn string, dest Destination) error {
	subLog := log.With().Str("BucketName", dest.Bucket).Str("FileName", fn).Logger()

	b2, err := backblaze.NewB2(backblaze.Credentials{
		KeyID:          viper.GetString("backblaze.application_id"),
		ApplicationKey: viper.GetString("backblaze.application_key"),
	})
	if err != nil {
		subLog.Error().Err(err).Msg("authorize backblaze failed")
		return err
	}

	bucket, err := b2.Bucket(dest.Bucket)
	if err != nil {
		subLog.Error().Err(err).Msg("lookup bucket failed")
		return err
	}

	if bucket == nil {
		subLog.Error().Msg("bucket does not exist")
		return fmt.Errorf("%w: %s", ErrBucketNotFound, dest.Bucket)
	}

	reader, err := os.Open(fn)
	if err != nil {
		subLog.Error().Err(err).Msg("could not open export file")
		return err
	}
	defer reader.Close()

	outName := dest.ObjectName(fn)
	file, err := bucket.UploadFile(outName, map[string]string{}, reader)
	if err != nil {
		subLog.Error().Err(err).Str("ObjectName", outName).Msg("save file to backblaze failed")
		return err
	}

	subLog.Info().Str("ObjectName", file.Name).Int64("Size", file.ContentLength).Str("ID", file.ID).Msg("uploaded export to backblaze")
	return nil
}
