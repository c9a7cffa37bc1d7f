package handlers

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkuznec/parts_shop/internal/models"
)

func TestUploadVideos(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	part := env.createPart("турбина", 15000, 1)

	body, contentType := buildMultipart(t, nil, nil, []formFile{
		{field: "videos", filename: "обзор.mp4", content: []byte("mp4-bytes")},
		{field: "videos", filename: "notes.txt", content: []byte("skip me")},
	})
	rec, c := env.doFormRequest(http.MethodPost, "/", body, contentType)
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatUint(uint64(part.ID), 10))
	require.NoError(t, env.Parts.UploadVideos(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var saved []models.PartVideo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	require.Len(t, saved, 1)
	assert.Equal(t, "обзор.mp4", saved[0].OriginalFilename)
	assert.True(t, strings.HasSuffix(saved[0].Filename, ".mp4"))
	assert.NotEqual(t, "обзор.mp4", saved[0].Filename)

	// videos live in the video/ subfolder of the part
	assert.FileExists(t, filepath.Join(env.Store.VideoDir(part.ID), saved[0].Filename))
}

func TestUploadVideos_PartNotFound(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	body, contentType := buildMultipart(t, nil, nil, []formFile{
		{field: "videos", filename: "v.mp4", content: []byte("mp4")},
	})
	rec, c := env.doFormRequest(http.MethodPost, "/", body, contentType)
	c.SetParamNames("id")
	c.SetParamValues("321")
	require.NoError(t, env.Parts.UploadVideos(c))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadVideos_Empty(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	part := env.createPart("помпа", 800, 1)

	body, contentType := buildMultipart(t, map[string]string{"unused": "x"}, nil, nil)
	rec, c := env.doFormRequest(http.MethodPost, "/", body, contentType)
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatUint(uint64(part.ID), 10))
	require.NoError(t, env.Parts.UploadVideos(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteVideo(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	part := env.createPart("крыло", 2500, 1)
	require.NoError(t, env.Store.SaveVideo(part.ID, "v.mp4", strings.NewReader("mp4")))
	video := models.PartVideo{PartID: part.ID, Filename: "v.mp4", OriginalFilename: "original.mp4"}
	require.NoError(t, env.DB.Create(&video).Error)

	rec, c := env.doJSONRequest(http.MethodDelete, "/", nil)
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatUint(uint64(video.ID), 10))
	require.NoError(t, env.Parts.DeleteVideo(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var count int64
	require.NoError(t, env.DB.Model(&models.PartVideo{}).Where("id = ?", video.ID).Count(&count).Error)
	assert.Zero(t, count)
	assert.NoFileExists(t, filepath.Join(env.Store.VideoDir(part.ID), "v.mp4"))
}
