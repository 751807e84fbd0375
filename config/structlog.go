package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/golang/glog"
)

type logMsg func(string, ...interface{})

var mapregex = "((%s))"

func logGeneral(v reflect.Value, prefix string) {
	logStructWithLogger(v, prefix, glog.Infof)
}

func logStructWithLogger(v reflect.Value, prefix string, logger logMsg) {
	if v.Kind() != reflect.Struct {
		glog.Fatalf("logStruct called on type %s, which is not a struct!", v.Type().String())
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		fieldName := fieldNameByTag(t.Field(i))
		if allowedName(fieldName) {
			logGeneralWithLogger(v.Field(i), prefix+fieldName, logger)
		} else {
			logger("%s: <REDACTED>", prefix+fieldName)
		}
	}
}

func logMapWithLogger(v reflect.Value, prefix string, logger logMsg) {
	if v.Kind() != reflect.Map {
		glog.Fatalf("logMap called on type %s, which is not a map!", v.Type().String())
	}
	for _, k := range v.MapKeys() {
		if k.Kind() == reflect.String && !allowedName(k.String()) {
			logger("%s[%s]: <REDACTED>", prefix, k.String())
		} else {
			logGeneralWithLogger(v.MapIndex(k), fmt.Sprintf("%s[%v]", prefix, k), logger)
		}
	}
}

func logGeneralWithLogger(v reflect.Value, prefix string, logger logMsg) {
	switch v.Kind() {
	case reflect.Struct:
		logStructWithLogger(v, prefix+".", logger)
	case reflect.Map:
		logMapWithLogger(v, prefix, logger)
	case reflect.Array, reflect.Slice:
		logger("%s: %v", prefix, v)
	default:
		logger("%s: %v", prefix, v)
	}
}

func fieldNameByTag(f reflect.StructField) string {
	tag := f.Tag.Get("mapstructure")
	tagSplit := strings.Split(tag, ",")
	if len(tagSplit) == 0 || tagSplit[0] == "" {
		return fmt.Sprintf(mapregex, f.Name)
	}
	return tagSplit[0]
}

var sensitiveNames = []string{"password", "secret"}

func allowedName(name string) bool {
	lower := strings.ToLower(name)
	for _, sensitive := range sensitiveNames {
		if strings.Contains(lower, sensitive) {
			return false
		}
	}
	return true
}
